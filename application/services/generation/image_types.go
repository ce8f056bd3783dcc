package generation

import "strings"

// ImageType describes an image sub-type: its default aspect ratio and the
// format-specific instructions sent with the generation request
type ImageType struct {
	Name         string
	AspectRatio  string
	Instructions string
}

const defaultImageType = "default"

var imageTypes = map[string]ImageType{
	"feed": {
		Name:         "feed",
		AspectRatio:  "4:5",
		Instructions: "Single feed image. Strong focal point, readable at thumbnail size.",
	},
	"carousel": {
		Name:         "carousel",
		AspectRatio:  "4:5",
		Instructions: "Carousel slide. Keep a consistent layout that can repeat across slides.",
	},
	"thumbnail": {
		Name:         "thumbnail",
		AspectRatio:  "16:9",
		Instructions: "Video thumbnail. High contrast, expressive subject, room for a short title.",
	},
	"story": {
		Name:         "story",
		AspectRatio:  "9:16",
		Instructions: "Vertical story. Keep the top and bottom 15% free of important elements.",
	},
	"quote": {
		Name:         "quote",
		AspectRatio:  "1:1",
		Instructions: "Quote card. Simple background with generous space for typography.",
	},
	"banner": {
		Name:         "banner",
		AspectRatio:  "16:9",
		Instructions: "Wide banner. Subject on one side, negative space on the other.",
	},
	defaultImageType: {
		Name:        defaultImageType,
		AspectRatio: "1:1",
	},
}

// LookupImageType returns the sub-type by name, falling back to the default type
func LookupImageType(name string) ImageType {
	if t, ok := imageTypes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return imageTypes[defaultImageType]
}
