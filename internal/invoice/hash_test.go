package invoice

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func makePNG(seed uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{uint8(x)*seed + seed, uint8(y) * 4, seed, 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("ContentHash", func() {
	It("is deterministic for identical bytes", func() {
		data := []byte("the same invoice bytes")
		Expect(ContentHash(data)).To(Equal(ContentHash([]byte("the same invoice bytes"))))
	})

	It("produces 64 lowercase hex characters", func() {
		hash := ContentHash([]byte("anything"))
		Expect(hash).To(HaveLen(64))
		Expect(hash).To(MatchRegexp(`^[0-9a-f]{64}$`))
	})

	It("differs for different bytes", func() {
		Expect(ContentHash([]byte("invoice a"))).NotTo(Equal(ContentHash([]byte("invoice b"))))
	})

	It("matches the known digest of the empty input", func() {
		Expect(ContentHash(nil)).To(Equal("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"))
	})
})

var _ = Describe("PerceptualHash", func() {
	It("hashes a decodable image", func() {
		hash, err := PerceptualHash(makePNG(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).NotTo(BeEmpty())
		Expect(strings.HasPrefix(hash, "p:")).To(BeTrue())
	})

	It("is stable for identical images", func() {
		a, err := PerceptualHash(makePNG(3))
		Expect(err).NotTo(HaveOccurred())
		b, err := PerceptualHash(makePNG(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("fails on undecodable data", func() {
		_, err := PerceptualHash([]byte("not an image"))
		Expect(err).To(HaveOccurred())
	})
})
