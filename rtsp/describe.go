package rtsp

import (
	"fmt"
	"strings"

	"github.com/rebeljah/picastflow/media"
	mediasdp "github.com/rebeljah/picastflow/sdp"
)

// describeSessionAttributes is the flat subset of media.Metadata that can
// round-trip through mediasdp.NewAttributesFromStruct: the nested
// Structure/Tracks fields are described per-track below instead, since
// strutil.Vtos only knows how to stringify scalar kinds.
type describeSessionAttributes struct {
	Title     string  `sdp:"title"`
	Genre     string  `sdp:"genre"`
	MediaType string  `sdp:"media-type"`
	Duration  float64 `sdp:"duration"`
	IsLive    bool    `sdp:"is-live"`
}

type describeTrackAttributes struct {
	ID   string `sdp:"id"`
	Role string `sdp:"track-role"`
}

func trackIsAudio(role media.TrackRole) bool {
	switch role {
	case media.RequiredTrackAudioRole, media.OptionalTrackAudioRole, media.StandaloneAudioRole:
		return true
	default:
		return false
	}
}

// buildSessionDescription renders an RFC 4566 session description for
// metadata, one "m=" section per track, for use as a DESCRIBE response
// body. Its attribute lines are keyed by the same `sdp` tag names that
// media.Metadata and media.TrackInfo declare, via the mediasdp reflection
// helpers.
func buildSessionDescription(contentUID media.UID, metadata media.Metadata) ([]byte, error) {
	sessionAttrs, err := mediasdp.NewAttributesFromStruct(&describeSessionAttributes{
		Title:     metadata.Title,
		Genre:     metadata.Genre,
		MediaType: string(metadata.MediaType),
		Duration:  metadata.Duration,
		IsLive:    metadata.IsLive,
	})
	if err != nil {
		return nil, fmt.Errorf("building session-level sdp attributes: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "v=0\r\n")
	fmt.Fprintf(&b, "o=- %s 1 IN IP4 0.0.0.0\r\n", contentUID)
	fmt.Fprintf(&b, "s=%s\r\n", metadata.Title)
	fmt.Fprintf(&b, "t=0 0\r\n")
	for _, a := range sessionAttrs {
		fmt.Fprintf(&b, "a=%s:%s\r\n", a.Key, a.Value)
	}

	for id, track := range metadata.Structure.Tracks {
		kind := "video"
		if trackIsAudio(track.Role) {
			kind = "audio"
		}

		fmt.Fprintf(&b, "m=%s 0 RTP/AVP 96\r\n", kind)
		fmt.Fprintf(&b, "a=control:track=%s\r\n", id)

		trackAttrs, err := mediasdp.NewAttributesFromStruct(&describeTrackAttributes{
			ID:   string(track.ID),
			Role: string(track.Role),
		})
		if err != nil {
			return nil, fmt.Errorf("building sdp attributes for track %s: %w", id, err)
		}
		for _, a := range trackAttrs {
			fmt.Fprintf(&b, "a=%s:%s\r\n", a.Key, a.Value)
		}
	}

	return []byte(b.String()), nil
}

func (s *RTSPServer) handleDescribe(ctx *requestContext) {
	path := strings.Trim(ctx.request.URL.Path, "/ ")
	segments := strings.Split(path, "/")

	// media/{uid}
	if len(segments) != 2 {
		ctx.response.writeHeader(NotFound)
		return
	}
	if segments[0] != "media" {
		ctx.response.writeHeader(MethodNotAllowed)
		return
	}

	mediaUID := media.UID(segments[1])
	metadata, ok := s.mediaManifest.Get(mediaUID)
	if !ok {
		ctx.response.writeHeader(NotFound)
		return
	}

	body, err := buildSessionDescription(mediaUID, metadata)
	if err != nil {
		ctx.response.writeHeader(InternalServerError)
		return
	}

	ctx.response.Body = body
	ctx.response.Headers.PutGenericLine(HeaderNameContentType, "application/sdp")
}
