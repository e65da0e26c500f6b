package hal

import (
	"bytes"
	"testing"
)

func TestOwnedImage(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	img := NewImage(data, 2, 2, Gray8)
	if img.Ownership() != Owned || !img.Valid() {
		t.Fatalf("NewImage: ownership %s valid %v", img.Ownership(), img.Valid())
	}
	if img.ToOwned() != img {
		t.Error("ToOwned on an owned image should return the receiver")
	}
}

func TestBorrowedImageToOwned(t *testing.T) {
	buf := []byte{10, 20, 30, 40}
	img := Borrow(buf, 2, 2, Gray8)
	img.Sequence = 7

	owned := img.ToOwned()
	if owned.Ownership() != Owned {
		t.Fatalf("ToOwned ownership = %s", owned.Ownership())
	}
	buf[0] = 99
	if owned.Bytes()[0] != 10 {
		t.Error("owned copy aliases the borrowed buffer")
	}
	if owned.Sequence != 7 || owned.Width() != 2 || owned.Format() != Gray8 {
		t.Errorf("metadata not carried over: %s seq=%d", owned, owned.Sequence)
	}
}

func TestBorrowedImageCopyOnWrite(t *testing.T) {
	buf := []byte{1, 2, 3}
	img := Borrow(buf, 3, 1, Gray8)

	w := img.MutableBytes()
	w[0] = 42
	if buf[0] != 1 {
		t.Error("MutableBytes wrote through to the borrowed buffer")
	}
	if img.Ownership() != Owned {
		t.Errorf("ownership after MutableBytes = %s", img.Ownership())
	}
	if !bytes.Equal(img.Bytes(), []byte{42, 2, 3}) {
		t.Errorf("Bytes = %v", img.Bytes())
	}
}

func TestBorrowedImageInvalidatedByNextPull(t *testing.T) {
	src := &sliceSource{frames: []Frame{
		{Image: Borrow([]byte{1}, 1, 1, Gray8)},
		{Image: Borrow([]byte{2}, 1, 1, Gray8)},
	}}
	s := NewImageStream(src, StreamDescriptor{Width: 1, Height: 1, Format: Gray8})

	first, err := s.NextImage()
	if err != nil {
		t.Fatal(err)
	}
	kept := first.ToOwned()
	if !first.Valid() {
		t.Fatal("borrowed image invalid before the next pull")
	}

	if _, err := s.NextImage(); err != nil {
		t.Fatal(err)
	}
	if first.Valid() {
		t.Error("borrowed image still valid after the next pull")
	}
	if !kept.Valid() || kept.Bytes()[0] != 1 {
		t.Error("owned copy lost after the next pull")
	}
}
