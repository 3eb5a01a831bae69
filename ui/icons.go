// Package ui provides the tray indicator and desktop notifications.
// This file contains icon generation utilities for the system tray.
package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/yllada/ssht-client/bridge"
)

// Symbol is the glyph drawn inside the shield.
type Symbol int

const (
	SymbolLock Symbol = iota
	SymbolCheckmark
	SymbolDots
	SymbolCross
)

// IconConfig defines the configuration for icon generation.
type IconConfig struct {
	Size        int
	FillColor   color.RGBA
	BorderColor color.RGBA
	AccentColor color.RGBA
	SymbolColor color.RGBA
	Symbol      Symbol
}

var white = color.RGBA{255, 255, 255, 255}

// DefaultConnectedIconConfig returns the config for the connected state.
func DefaultConnectedIconConfig() IconConfig {
	return IconConfig{
		Size:        22,
		FillColor:   color.RGBA{56, 142, 60, 255},
		BorderColor: color.RGBA{76, 175, 80, 255},
		AccentColor: color.RGBA{200, 230, 201, 255},
		SymbolColor: white,
		Symbol:      SymbolCheckmark,
	}
}

// DefaultDisconnectedIconConfig returns the config for the disconnected state.
func DefaultDisconnectedIconConfig() IconConfig {
	return IconConfig{
		Size:        22,
		FillColor:   color.RGBA{117, 117, 117, 255},
		BorderColor: color.RGBA{158, 158, 158, 255},
		AccentColor: color.RGBA{189, 189, 189, 255},
		SymbolColor: white,
		Symbol:      SymbolLock,
	}
}

// DefaultConnectingIconConfig returns the config for CONNECTING, AUTH and STOPPING.
func DefaultConnectingIconConfig() IconConfig {
	return IconConfig{
		Size:        22,
		FillColor:   color.RGBA{98, 5, 213, 255},
		BorderColor: color.RGBA{140, 82, 255, 255},
		AccentColor: color.RGBA{209, 196, 233, 255},
		SymbolColor: white,
		Symbol:      SymbolDots,
	}
}

// DefaultErrorIconConfig returns the config for AUTH_FAILED and NO_NETWORK.
func DefaultErrorIconConfig() IconConfig {
	return IconConfig{
		Size:        22,
		FillColor:   color.RGBA{198, 40, 40, 255},
		BorderColor: color.RGBA{229, 57, 53, 255},
		AccentColor: color.RGBA{255, 205, 210, 255},
		SymbolColor: white,
		Symbol:      SymbolCross,
	}
}

// IconGenerator generates PNG icons for the system tray.
type IconGenerator struct {
	config IconConfig
}

// NewIconGenerator creates a new icon generator with the given config.
func NewIconGenerator(config IconConfig) *IconGenerator {
	return &IconGenerator{config: config}
}

// Generate creates a PNG icon and returns the bytes.
func (g *IconGenerator) Generate() []byte {
	return encode(g.Image())
}

// Image renders the icon without encoding it.
func (g *IconGenerator) Image() *image.RGBA {
	size := g.config.Size
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	g.drawShield(img)

	switch g.config.Symbol {
	case SymbolCheckmark:
		g.drawCheckmark(img)
	case SymbolDots:
		g.drawDots(img)
	case SymbolCross:
		g.drawCross(img)
	default:
		g.drawLock(img)
	}
	return img
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// drawShield draws the shield shape on the image.
func (g *IconGenerator) drawShield(img *image.RGBA) {
	size := g.config.Size
	centerX := float64(size) / 2
	topY := 1.0
	bottomY := float64(size) - 2
	shieldWidth := float64(size) - 4

	inShield := func(x, y float64) bool {
		relY := (y - topY) / (bottomY - topY)
		if relY < 0 || relY > 1 {
			return false
		}

		var halfWidth float64
		if relY < 0.5 {
			halfWidth = shieldWidth/2 - relY*0.5
		} else {
			p := (relY - 0.5) * 2
			halfWidth = (shieldWidth/2 - 0.25) * (1 - p*p)
		}
		return x >= centerX-halfWidth && x <= centerX+halfWidth
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if !inShield(fx, fy) {
				continue
			}

			border := !inShield(fx-1, fy) || !inShield(fx+1, fy) ||
				!inShield(fx, fy-1) || !inShield(fx, fy+1)
			switch {
			case border:
				img.Set(x, y, g.config.BorderColor)
			case float64(y)/float64(size) < 0.3:
				img.Set(x, y, g.config.AccentColor)
			default:
				img.Set(x, y, g.config.FillColor)
			}
		}
	}
}

func (g *IconGenerator) plot(img *image.RGBA, x, y int) {
	if x >= 0 && x < g.config.Size && y >= 0 && y < g.config.Size {
		img.Set(x, y, g.config.SymbolColor)
	}
}

func (g *IconGenerator) drawCheckmark(img *image.RGBA) {
	points := []struct{ x, y int }{
		{6, 11}, {7, 11}, {7, 12}, {8, 12}, {8, 13}, {9, 13},
		{9, 12}, {10, 12}, {10, 11}, {11, 11}, {11, 10}, {12, 10},
		{12, 9}, {13, 9}, {13, 8}, {14, 8},
	}
	for _, p := range points {
		g.plot(img, p.x, p.y)
	}
}

func (g *IconGenerator) drawLock(img *image.RGBA) {
	// body
	for y := 10; y <= 15; y++ {
		for x := 8; x <= 14; x++ {
			if y == 10 || y == 15 || x == 8 || x == 14 {
				g.plot(img, x, y)
			}
		}
	}

	// shackle
	for y := 6; y <= 8; y++ {
		g.plot(img, 9, y)
		g.plot(img, 13, y)
	}
	for x := 9; x <= 13; x++ {
		g.plot(img, x, 6)
	}
}

func (g *IconGenerator) drawDots(img *image.RGBA) {
	for _, cx := range []int{7, 11, 15} {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				g.plot(img, cx-1+dx, 10+dy)
			}
		}
	}
}

func (g *IconGenerator) drawCross(img *image.RGBA) {
	for i := 0; i <= 6; i++ {
		g.plot(img, 8+i, 7+i)
		g.plot(img, 14-i, 7+i)
	}
}

// GenerateConnectedIcon generates the connected state icon.
func GenerateConnectedIcon() []byte {
	return NewIconGenerator(DefaultConnectedIconConfig()).Generate()
}

// GenerateDisconnectedIcon generates the disconnected state icon.
func GenerateDisconnectedIcon() []byte {
	return NewIconGenerator(DefaultDisconnectedIconConfig()).Generate()
}

// Pre-generated icons, one per coarse state.
var (
	iconConnected    = GenerateConnectedIcon()
	iconDisconnected = GenerateDisconnectedIcon()
	iconConnecting   = NewIconGenerator(DefaultConnectingIconConfig()).Generate()
	iconError        = NewIconGenerator(DefaultErrorIconConfig()).Generate()
)

// IconForState returns the tray icon for a tunnel state.
func IconForState(s bridge.TunnelState) []byte {
	switch s {
	case bridge.StateConnected:
		return iconConnected
	case bridge.StateConnecting, bridge.StateAuth, bridge.StateStopping:
		return iconConnecting
	case bridge.StateAuthFailed, bridge.StateNoNetwork:
		return iconError
	default:
		return iconDisconnected
	}
}
