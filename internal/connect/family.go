package connect

import (
	"github.com/zsiec/ingex/internal/codec"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/reformat"
)

const (
	mib = 1024 * 1024
	kib = 1024
)

// plan pins down how one negotiated stream is decoded.
type plan struct {
	codec         codec.ID
	width, height int // decoder geometry
	staging       int // worst-case coded frame size
	pixel         codec.PixelFormat
	region        reformat.Region
}

// codecSpec is what distinguishes one decoding family from another.
type codecSpec interface {
	name() string
	// outputs lists the decoded stream infos to offer the sink, preferred
	// first. An empty result means the family does not handle src.
	outputs(src *media.StreamInfo) []media.StreamInfo
	plan(src, out *media.StreamInfo) plan
}

// withFormat returns src as a raw picture of the given format.
func withFormat(src *media.StreamInfo, f media.Format) media.StreamInfo {
	out := *src
	out.Format = f
	return out
}

func rawOutputs(src *media.StreamInfo, preferred media.Format) []media.StreamInfo {
	return []media.StreamInfo{withFormat(src, preferred), withFormat(src, media.FormatUYVY)}
}

// pixelFor maps a planar output format to the decoder layout it is copied from.
func pixelFor(f media.Format) codec.PixelFormat {
	switch f {
	case media.FormatYUV420:
		return codec.PixelFormatYUV420P
	case media.FormatYUV411:
		return codec.PixelFormatYUV411P
	case media.FormatYUV422:
		return codec.PixelFormatYUV422P
	case media.FormatYUV422_10Bit:
		return codec.PixelFormatYUV422P10
	case media.FormatYUV420_10Bit:
		return codec.PixelFormatYUV420P10
	}
	return codec.PixelFormatUnknown
}

// macroblockHeight rounds 1080 up to the coded 1088 lines.
func macroblockHeight(h int) int {
	if h == 1080 {
		return 1088
	}
	return h
}

func picture(src *media.StreamInfo) bool {
	return src.Type == media.StreamTypePicture
}

type dvSpec struct{}

func (dvSpec) name() string { return "dv" }

func (dvSpec) outputs(src *media.StreamInfo) []media.StreamInfo {
	if !picture(src) {
		return nil
	}
	switch src.Format {
	case media.FormatDV25YUV420:
		return rawOutputs(src, media.FormatYUV420)
	case media.FormatDV25YUV411:
		return rawOutputs(src, media.FormatYUV411)
	case media.FormatDV50, media.FormatDV100_1080i, media.FormatDV100_720p:
		return rawOutputs(src, media.FormatYUV422)
	}
	return nil
}

func (dvSpec) plan(src, out *media.StreamInfo) plan {
	p := plan{
		codec:  codec.IDDV,
		width:  src.Width,
		height: src.Height,
		pixel:  pixelFor(out.Format),
		region: reformat.Region{Width: out.Width, Height: out.Height},
	}
	switch src.Format {
	case media.FormatDV25YUV420, media.FormatDV25YUV411:
		p.staging = 144000
	case media.FormatDV50:
		p.staging = 288000
	default:
		p.staging = 576000
	}
	// PAL DV25 and DV50 pictures sit one line higher than the raster.
	if src.Height == 576 && (src.Format == media.FormatDV25YUV420 || src.Format == media.FormatDV25YUV411 || src.Format == media.FormatDV50) {
		p.region.ShiftDown = true
	}
	return p
}

type mpegSpec struct{}

func (mpegSpec) name() string { return "mpeg" }

func (mpegSpec) outputs(src *media.StreamInfo) []media.StreamInfo {
	if !picture(src) {
		return nil
	}
	switch src.Format {
	case media.FormatD10:
		out := *src
		if out.Height == 608 {
			out.Height = 576
		}
		return rawOutputs(&out, media.FormatYUV422)
	case media.FormatMPEG2IFrame422:
		return rawOutputs(src, media.FormatYUV422)
	}
	return nil
}

func (mpegSpec) plan(src, out *media.StreamInfo) plan {
	p := plan{
		codec:   codec.IDMPEG2Video,
		width:   src.Width,
		height:  macroblockHeight(src.Height),
		staging: 250000,
		pixel:   pixelFor(out.Format),
		region:  reformat.Region{Width: out.Width, Height: out.Height},
	}
	if src.Format == media.FormatD10 {
		// 608 coded lines; the top 32 carry VBI
		p.height = 608
		p.region.Top = 32
	} else if src.Width > 720 {
		p.staging = mib
	}
	return p
}

type mjpegSpec struct{}

func (mjpegSpec) name() string { return "mjpeg" }

func (mjpegSpec) outputs(src *media.StreamInfo) []media.StreamInfo {
	if !picture(src) || src.Format != media.FormatAvidMJPEG {
		return nil
	}
	return rawOutputs(src, media.FormatYUV422)
}

func (mjpegSpec) plan(src, out *media.StreamInfo) plan {
	return plan{
		codec:   codec.IDMJPEG,
		width:   src.Width,
		height:  src.Height,
		staging: src.Width * src.Height * 2,
		pixel:   pixelFor(out.Format),
		region:  reformat.Region{Width: out.Width, Height: out.Height},
	}
}

type dnxhdSpec struct{}

func (dnxhdSpec) name() string { return "dnxhd" }

func (dnxhdSpec) outputs(src *media.StreamInfo) []media.StreamInfo {
	if !picture(src) || src.Format != media.FormatDNxHD {
		return nil
	}
	return rawOutputs(src, media.FormatYUV422)
}

func (dnxhdSpec) plan(src, out *media.StreamInfo) plan {
	return plan{
		codec:   codec.IDDNxHD,
		width:   src.Width,
		height:  macroblockHeight(src.Height),
		staging: 2 * mib,
		pixel:   pixelFor(out.Format),
		region:  reformat.Region{Width: out.Width, Height: out.Height},
	}
}

type avciSpec struct{}

func (avciSpec) name() string { return "avci" }

func (avciSpec) outputs(src *media.StreamInfo) []media.StreamInfo {
	if !picture(src) {
		return nil
	}
	switch src.Format {
	case media.FormatAVCI100_1080, media.FormatAVCI100_720:
		return rawOutputs(src, media.FormatYUV422_10Bit)
	case media.FormatAVCI50_1080, media.FormatAVCI50_720:
		// AVC-Intra 50 is coded horizontally subsampled
		out := *src
		switch out.Width {
		case 1920:
			out.Width = 1440
		case 1280:
			out.Width = 960
		}
		out.SampleAspect = media.Rational{Num: 4, Den: 3}
		return rawOutputs(&out, media.FormatYUV420_10Bit)
	}
	return nil
}

func (avciSpec) plan(src, out *media.StreamInfo) plan {
	p := plan{
		codec:   codec.IDH264,
		width:   out.Width,
		height:  macroblockHeight(out.Height),
		staging: mib,
		region:  reformat.Region{Width: out.Width, Height: out.Height},
	}
	if src.Format == media.FormatAVCI50_1080 || src.Format == media.FormatAVCI50_720 {
		p.staging = 576 * kib
		p.pixel = codec.PixelFormatYUV420P10
	} else {
		p.pixel = codec.PixelFormatYUV422P10
	}
	return p
}

// DV decodes DV25, DV50 and DV100.
func DV() Family { return &decodeFamily{spec: dvSpec{}} }

// MPEG decodes D10 and I-frame only MPEG-2 4:2:2.
func MPEG() Family { return &decodeFamily{spec: mpegSpec{}} }

// MJPEG decodes Avid MJPEG.
func MJPEG() Family { return &decodeFamily{spec: mjpegSpec{}} }

// DNxHD decodes DNxHD.
func DNxHD() Family { return &decodeFamily{spec: dnxhdSpec{}} }

// AVCIntra decodes AVC-Intra 50 and 100.
func AVCIntra() Family { return &decodeFamily{spec: avciSpec{}} }
