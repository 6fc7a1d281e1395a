package services

import (
	"image"
	"image/color"
	_ "image/jpeg" // register decoders for rendered slide images
	_ "image/png"
	"os"
)

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// PreprocessImage applies the configured preprocessing steps in a fixed order:
// upscale, denoise, binarize. Each step is independently toggleable.
func PreprocessImage(img image.Image, opts PreprocessOptions) image.Image {
	if opts.Upscale {
		img = upscale(img, 2)
	}
	if opts.Denoise {
		img = boxBlur(img)
	}
	if opts.Binarize {
		img = binarize(img)
	}
	return img
}

// upscale enlarges the image by an integer factor with nearest-neighbor sampling.
func upscale(img image.Image, factor int) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*factor, bounds.Dy()*factor))
	for y := 0; y < dst.Bounds().Dy(); y++ {
		for x := 0; x < dst.Bounds().Dx(); x++ {
			dst.Set(x, y, img.At(bounds.Min.X+x/factor, bounds.Min.Y+y/factor))
		}
	}
	return dst
}

// boxBlur applies a 3x3 mean filter to suppress speckle noise.
func boxBlur(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var r, g, b, a, n uint32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					pr, pg, pb, pa := img.At(nx, ny).RGBA()
					r += pr
					g += pg
					b += pb
					a += pa
					n++
				}
			}
			dst.Set(x, y, color.RGBA64{
				R: uint16(r / n),
				G: uint16(g / n),
				B: uint16(b / n),
				A: uint16(a / n),
			})
		}
	}
	return dst
}

// binarize converts to grayscale and thresholds with Otsu's method.
func binarize(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	var histogram [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			gray.SetGray(x, y, g)
			histogram[g.Y]++
		}
	}

	threshold := otsuThreshold(histogram, bounds.Dx()*bounds.Dy())

	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				dst.SetGray(x, y, color.Gray{Y: 255})
			} else {
				dst.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return dst
}

// otsuThreshold finds the threshold maximizing between-class variance.
func otsuThreshold(histogram [256]int, total int) uint8 {
	if total == 0 {
		return 128
	}

	var sum float64
	for i, count := range histogram {
		sum += float64(i) * float64(count)
	}

	var sumB, wB float64
	var maxVariance float64
	var threshold uint8

	for t := 0; t < 256; t++ {
		wB += float64(histogram[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])

		mB := sumB / wB
		mF := (sum - sumB) / wF
		variance := wB * wF * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(t)
		}
	}
	return threshold
}
