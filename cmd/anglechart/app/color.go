package app

import "image/color"

const (
	LightTheme Theme = "light"
	DarkTheme  Theme = "dark"
)

type Theme string

// Palette holds the colors of one theme
type Palette struct {
	Background color.Color
	Grid       color.Color
	Axis       color.Color
	Text       color.Color
	Range      color.Color // min..max of the readings within one pixel column
	Line       color.Color // the angle trace
}

var themes = map[Theme]Palette{
	LightTheme: {
		Background: color.White,
		Grid:       color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff},
		Axis:       color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff},
		Text:       color.Black,
		Range:      color.RGBA{R: 0x9e, G: 0xc5, B: 0xfe, A: 0xff},
		Line:       color.RGBA{R: 0x0d, G: 0x6e, B: 0xfd, A: 0xff},
	},
	DarkTheme: {
		Background: color.RGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xff},
		Grid:       color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff},
		Axis:       color.RGBA{R: 0xaa, G: 0xaa, B: 0xaa, A: 0xff},
		Text:       color.White,
		Range:      color.RGBA{R: 0x66, G: 0x4d, B: 0x03, A: 0xff},
		Line:       color.RGBA{R: 0xff, G: 0xc1, B: 0x07, A: 0xff},
	},
}

// GetPalette returns the palette of a theme, falling back to the light one
func GetPalette(theme Theme) Palette {
	if p, ok := themes[theme]; ok {
		return p
	}
	return themes[LightTheme]
}
