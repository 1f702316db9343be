package characters

import "strings"

// PresetOption pairs a stable key with the prompt fragment it contributes.
type PresetOption struct {
	Value          string `json:"value"`
	Label          string `json:"label"`
	PromptFragment string `json:"prompt_fragment"`
}

// Presets is the static catalog of character generation presets.
type Presets struct {
	BackgroundColors []PresetOption `json:"background_colors"`
	Styles           []PresetOption `json:"styles"`
	Angles           []PresetOption `json:"angles"`
}

var characterPresets = Presets{
	BackgroundColors: []PresetOption{
		{Value: "white", Label: "White", PromptFragment: "solid white background (#FFFFFF)"},
		{Value: "black", Label: "Black", PromptFragment: "solid black background (#000000)"},
		{Value: "gray", Label: "Gray", PromptFragment: "neutral gray background (#808080)"},
		{Value: "green-screen", Label: "Green Screen", PromptFragment: "bright green chroma key background (#00FF00)"},
	},
	Styles: []PresetOption{
		{Value: "pixel-art", Label: "Pixel Art", PromptFragment: "pixel art style, 16-bit aesthetic, crisp edges, limited color palette"},
		{Value: "anime", Label: "Anime", PromptFragment: "anime style, clean linework, expressive features, cel-shaded"},
		{Value: "cartoon", Label: "Cartoon", PromptFragment: "cartoon style, bold outlines, exaggerated proportions, vibrant colors"},
		{Value: "realistic", Label: "Realistic", PromptFragment: "realistic style, detailed rendering, natural proportions, subtle shading"},
		{Value: "chibi", Label: "Chibi", PromptFragment: "chibi style, super-deformed, large head, small body, cute aesthetic"},
		{Value: "flat", Label: "Flat Design", PromptFragment: "flat design style, minimal shading, solid colors, vector-like appearance"},
		{Value: "3d-render", Label: "3D Render", PromptFragment: "3D rendered style, volumetric lighting, smooth surfaces"},
	},
	Angles: []PresetOption{
		{Value: "front", Label: "Front View", PromptFragment: "front-facing view, looking directly at viewer"},
		{Value: "3/4", Label: "3/4 View", PromptFragment: "three-quarter view angle, slight turn to the side"},
		{Value: "side", Label: "Side Profile", PromptFragment: "side profile view, full silhouette visible"},
		{Value: "back", Label: "Back View", PromptFragment: "back view, facing away from viewer"},
		{Value: "dynamic", Label: "Dynamic Pose", PromptFragment: "dynamic action pose, expressive movement"},
		{Value: "t-pose", Label: "T-Pose", PromptFragment: "T-pose stance, arms extended horizontally, neutral rigging pose"},
	},
}

// PresetCatalog returns the full preset catalog for clients rendering forms.
func PresetCatalog() Presets {
	return characterPresets
}

func findFragment(options []PresetOption, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	for _, option := range options {
		if option.Value == trimmed {
			return option.PromptFragment
		}
	}
	return ""
}

// AngleFragment resolves an angle preset key to its prompt fragment. Unknown
// or absent keys contribute nothing.
func AngleFragment(value string) string {
	return findFragment(characterPresets.Angles, value)
}

// BuildSystemPrompt composes the character generation system prompt from the
// selected presets. Unknown keys are silently skipped.
func BuildSystemPrompt(background, style, angle string) string {
	fragments := make([]string, 0, 3)
	for _, fragment := range []string{
		findFragment(characterPresets.BackgroundColors, background),
		findFragment(characterPresets.Styles, style),
		AngleFragment(angle),
	} {
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
	if len(fragments) == 0 {
		return ""
	}
	return "Generate a character image with the following specifications: " + strings.Join(fragments, ", ") + "."
}
