package geotiler

import "fmt"

// A Window is a rectangle of Width*Height pixels whose upper left corner is X,Y
// in the source raster's pixel frame. Col and Row are its position in the tile
// grid it was generated from.
type Window struct {
	Col, Row      int
	X, Y          int
	Width, Height int
}

// Grid decomposes a width*height raster into non-overlapping tileSize*tileSize
// windows, in row-major order (rows outer, columns inner). Incomplete tiles on
// the right and bottom edges are dropped.
func Grid(width, height, tileSize int) ([]Window, error) {
	if tileSize <= 0 {
		return nil, ErrInvalidOption{"tile size must be >=1"}
	}
	if width < 0 || height < 0 {
		return nil, ErrInvalidOption{fmt.Sprintf("invalid raster size %dx%d", width, height)}
	}
	ntx, nty := width/tileSize, height/tileSize
	windows := make([]Window, 0, ntx*nty)
	for row := 0; row < nty; row++ {
		for col := 0; col < ntx; col++ {
			windows = append(windows, Window{
				Col:    col,
				Row:    row,
				X:      col * tileSize,
				Y:      row * tileSize,
				Width:  tileSize,
				Height: tileSize,
			})
		}
	}
	return windows, nil
}
