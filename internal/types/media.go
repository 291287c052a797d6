package types

import "regexp"

// MediaKind is the player used to show alarm media.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

var (
	videoSuffix = regexp.MustCompile(`(?i)\.(mp4|mov)$`)
	imageSuffix = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)
)

// InferMediaKind guesses the media kind of a storage path from its file
// extension. Unknown extensions yield MediaNone.
func InferMediaKind(path string) MediaKind {
	switch {
	case videoSuffix.MatchString(path):
		return MediaVideo
	case imageSuffix.MatchString(path):
		return MediaImage
	}
	return MediaNone
}
