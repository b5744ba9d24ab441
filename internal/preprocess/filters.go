package preprocess

import "image"

// equalizeTiles performs tile-based histogram equalization with a clip limit,
// interpolating mappings bilinearly between neighboring tiles to avoid block
// seams.
func equalizeTiles(src *image.Gray, tilesX, tilesY int, clipLimit float64) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 || tilesX < 1 || tilesY < 1 {
		return src
	}

	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	// Per-tile lookup tables from clipped-histogram CDFs.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileLUT(src, x0, y0, x1, y1, clipLimit)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		// Tile-space coordinates of the pixel center.
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(fy), 0, tilesY-1)
		ty1 := clampInt(ty0+1, 0, tilesY-1)
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		} else if wy > 1 {
			wy = 1
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(fx), 0, tilesX-1)
			tx1 := clampInt(tx0+1, 0, tilesX-1)
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			} else if wx > 1 {
				wx = 1
			}

			v := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			tl := float64(luts[ty0*tilesX+tx0][v])
			tr := float64(luts[ty0*tilesX+tx1][v])
			bl := float64(luts[ty1*tilesX+tx0][v])
			br := float64(luts[ty1*tilesX+tx1][v])
			top := tl + (tr-tl)*wx
			bottom := bl + (br-bl)*wx
			dst.Pix[y*dst.Stride+x] = uint8(top + (bottom-top)*wy + 0.5)
		}
	}
	return dst
}

func tileLUT(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	bounds := src.Bounds()
	total := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y]++
			total++
		}
	}

	var lut [256]uint8
	if total == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	// Clip histogram peaks and redistribute the excess uniformly.
	limit := int(clipLimit * float64(total) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, count := range hist {
		if count > limit {
			excess += count - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}

	cum := 0
	for i, count := range hist {
		cum += count
		lut[i] = uint8((cum*255 + total/2) / total)
	}
	return lut
}

// boxBlur3 applies a 3x3 mean filter with edge clamping.
func boxBlur3(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sx := clampInt(x+dx, 0, w-1)
					sy := clampInt(y+dy, 0, h-1)
					sum += int(src.GrayAt(bounds.Min.X+sx, bounds.Min.Y+sy).Y)
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + 4) / 9)
		}
	}
	return dst
}

// unsharpMask sharpens by subtracting a weighted blur: out = amount*src - sub*blur.
func unsharpMask(src *image.Gray, amount, sub float64) *image.Gray {
	blurred := boxBlur3(src)
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			orig := float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			blur := float64(blurred.GrayAt(x, y).Y)
			dst.Pix[y*dst.Stride+x] = clampByte(amount*orig - sub*blur)
		}
	}
	return dst
}

// adaptiveMeanThreshold binarizes each pixel against the mean of its
// block x block neighborhood minus bias. An integral image keeps the window
// sums O(1) per pixel.
func adaptiveMeanThreshold(src *image.Gray, block, bias int) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return src
	}
	if block%2 == 0 {
		block++
	}
	r := block / 2

	integral := make([]uint64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0 := clampInt(y-r, 0, h-1)
		y1 := clampInt(y+r, 0, h-1)
		for x := 0; x < w; x++ {
			x0 := clampInt(x-r, 0, w-1)
			x1 := clampInt(x+r, 0, w-1)
			count := uint64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			mean := int(sum / count)
			v := int(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			if v > mean-bias {
				dst.Pix[y*dst.Stride+x] = 255
			} else {
				dst.Pix[y*dst.Stride+x] = 0
			}
		}
	}
	return dst
}

// morphClose reconnects broken strokes: dilate then erode with a 2x2 kernel.
// Text is dark on light, so dilation takes the window minimum.
func morphClose(src *image.Gray) *image.Gray {
	return erode2(dilate2(src))
}

func dilate2(src *image.Gray) *image.Gray {
	return morph2(src, func(a, b uint8) bool { return a < b })
}

func erode2(src *image.Gray) *image.Gray {
	return morph2(src, func(a, b uint8) bool { return a > b })
}

func morph2(src *image.Gray, better func(a, b uint8) bool) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			for dy := 0; dy <= 1; dy++ {
				for dx := 0; dx <= 1; dx++ {
					sx := clampInt(x+dx, 0, w-1)
					sy := clampInt(y+dy, 0, h-1)
					v := src.GrayAt(bounds.Min.X+sx, bounds.Min.Y+sy).Y
					if better(v, best) {
						best = v
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = best
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
