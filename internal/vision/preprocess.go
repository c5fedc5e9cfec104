package vision

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// decodeImage decodes raster bytes. A nil image means the input could not
// be decoded — callers treat that as "no face", not a failure.
func decodeImage(data []byte) image.Image {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return img
}

// preprocessForDetection scales an image to the detector input size and
// returns CHW float32 data normalized to [0,1].
func preprocessForDetection(img image.Image, width, height int) []float32 {
	resized := resizeImage(img, width, height)

	data := make([]float32, 3*width*height)
	plane := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			idx := y*width + x
			data[0*plane+idx] = float32(r>>8) / 255.0
			data[1*plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return data
}

// cropRegion extracts the bounding box from the original image. Returns nil
// for degenerate boxes.
func cropRegion(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()
	x1 := bounds.Min.X + int(bbox[0])
	y1 := bounds.Min.Y + int(bbox[1])
	x2 := bounds.Min.X + int(bbox[2])
	y2 := bounds.Min.Y + int(bbox[3])

	rect := image.Rect(x1, y1, x2, y2).Intersect(bounds)
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)
	return crop
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
