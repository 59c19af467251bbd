// Package reformat reshuffles decoded planar pictures into the raw layouts
// sinks accept. Nothing here allocates; callers pass a destination sized by
// PlanarSize or UYVYSize.
package reformat

import (
	"encoding/binary"
	"fmt"

	"github.com/zsiec/ingex/internal/codec"
)

// Region selects the visible part of a decoded picture.
type Region struct {
	// Top is the number of coded lines skipped, e.g. the VBI lines of D10.
	Top int
	// Width and Height bound the output; zero means the picture size.
	Width, Height int
	// ShiftDown moves every plane down one line and blanks the first line.
	ShiftDown bool
}

func (r Region) resolve(pic *codec.Picture) (w, h int, err error) {
	w, h = pic.Width, pic.Height-r.Top
	if r.Width > 0 && r.Width < w {
		w = r.Width
	}
	if r.Height > 0 && r.Height < h {
		h = r.Height
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("reformat: empty region %dx%d from %dx%d top %d", w, h, pic.Width, pic.Height, r.Top)
	}
	return w, h, nil
}

func chromaDims(f codec.PixelFormat, w, h int) (int, int) {
	sx, sy := f.ChromaShift()
	return (w + (1 << sx) - 1) >> sx, (h + (1 << sy) - 1) >> sy
}

// PlanarSize is the tightly packed size of a planar picture.
func PlanarSize(f codec.PixelFormat, w, h int) int {
	cw, ch := chromaDims(f, w, h)
	return (w*h + 2*cw*ch) * f.BytesPerSample()
}

// UYVYSize is the size of an 8-bit packed 4:2:2 picture.
func UYVYSize(w, h int) int { return w * h * 2 }

func blank(f codec.PixelFormat, plane int, line []byte) {
	if f.BytesPerSample() == 2 {
		v := uint16(512)
		if plane == 0 {
			v = 64
		}
		for i := 0; i+1 < len(line); i += 2 {
			binary.LittleEndian.PutUint16(line[i:], v)
		}
		return
	}
	v := byte(128)
	if plane == 0 {
		v = 16
	}
	for i := range line {
		line[i] = v
	}
}

// Planar copies the region into dst as tightly packed planes in the picture's
// own pixel format, dropping stride padding.
func Planar(dst []byte, pic *codec.Picture, r Region) error {
	w, h, err := r.resolve(pic)
	if err != nil {
		return err
	}
	if need := PlanarSize(pic.Format, w, h); len(dst) < need {
		return fmt.Errorf("reformat: destination %d bytes, need %d", len(dst), need)
	}

	bps := pic.Format.BytesPerSample()
	_, sy := pic.Format.ChromaShift()
	cw, ch := chromaDims(pic.Format, w, h)

	off := 0
	for plane := 0; plane < 3; plane++ {
		pw, ph, top := w, h, r.Top
		if plane > 0 {
			pw, ph, top = cw, ch, r.Top>>sy
		}
		rowBytes := pw * bps
		stride := pic.Strides[plane]
		src := pic.Planes[plane]

		for y := 0; y < ph; y++ {
			out := dst[off+y*rowBytes : off+(y+1)*rowBytes]
			srcY := top + y
			if r.ShiftDown {
				if y == 0 {
					blank(pic.Format, plane, out)
					continue
				}
				srcY--
			}
			copy(out, src[srcY*stride:srcY*stride+rowBytes])
		}
		off += rowBytes * ph
	}
	return nil
}

// UYVY interleaves the region into 8-bit packed 4:2:2. 4:2:0 chroma is
// repeated on both lines of a pair, 4:1:1 chroma on both sample pairs, and
// 10-bit samples are truncated to 8 bits.
func UYVY(dst []byte, pic *codec.Picture, r Region) error {
	w, h, err := r.resolve(pic)
	if err != nil {
		return err
	}
	if need := UYVYSize(w, h); len(dst) < need {
		return fmt.Errorf("reformat: destination %d bytes, need %d", len(dst), need)
	}

	ten := pic.Format.BytesPerSample() == 2
	sx, sy := pic.Format.ChromaShift()
	sample := func(plane, x, y int) byte {
		i := y*pic.Strides[plane] + x
		if ten {
			i = y*pic.Strides[plane] + 2*x
			return byte(binary.LittleEndian.Uint16(pic.Planes[plane][i:]) >> 2)
		}
		return pic.Planes[plane][i]
	}

	rowBytes := w * 2
	for y := 0; y < h; y++ {
		out := dst[y*rowBytes : (y+1)*rowBytes]
		srcY := r.Top + y
		if r.ShiftDown {
			if y == 0 {
				for i := 0; i+1 < len(out); i += 2 {
					out[i], out[i+1] = 0x80, 0x10
				}
				continue
			}
			srcY--
		}
		cy := srcY >> sy
		for x := 0; x+1 < w; x += 2 {
			cx := x >> sx
			out[2*x] = sample(1, cx, cy)
			out[2*x+1] = sample(0, x, srcY)
			out[2*x+2] = sample(2, cx, cy)
			out[2*x+3] = sample(0, x+1, srcY)
		}
		if w%2 == 1 {
			x := w - 1
			out[2*x] = sample(1, x>>sx, cy)
			out[2*x+1] = sample(0, x, srcY)
		}
	}
	return nil
}
