package guest

import (
	"encoding/binary"
	"testing"
)

func buildContainer(t *testing.T, elfBytes, dtbBytes []byte) []byte {
	t.Helper()

	buf := make([]byte, containerHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], containerMagic)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(elfBytes)))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(dtbBytes)))
	buf = append(buf, elfBytes...)
	buf = append(buf, dtbBytes...)
	return buf
}

func TestParseContainerRejectsBadMagic(t *testing.T) {
	elfBytes := buildImage(t, 0x80200000, []byte{1, 2, 3}, 0x80200000, 3, pfRead|pfExec)
	data := buildContainer(t, elfBytes, []byte("dtb"))
	data[0] = 0

	if _, err := ParseContainer(data); err != errBadContainerMagic {
		t.Fatalf("expected errBadContainerMagic, got %v", err)
	}
}

func TestParseContainerRejectsTruncation(t *testing.T) {
	elfBytes := buildImage(t, 0x80200000, []byte{1, 2, 3}, 0x80200000, 3, pfRead|pfExec)
	data := buildContainer(t, elfBytes, []byte("dtb"))
	data = data[:len(data)-1]

	if _, err := ParseContainer(data); err != errContainerTooSmall {
		t.Fatalf("expected errContainerTooSmall, got %v", err)
	}
}

func TestParseContainerSplitsKernelAndDTB(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	elfBytes := buildImage(t, 0x80200000, payload, 0x80200000, 0x1000, pfRead|pfExec)
	dtbBytes := []byte("fake-dtb-blob")
	data := buildContainer(t, elfBytes, dtbBytes)

	c, err := ParseContainer(data)
	if err != nil {
		t.Fatalf("ParseContainer: %v", err)
	}
	if c.Kernel.Entry != 0x80200000 {
		t.Fatalf("unexpected kernel entry: %#x", c.Kernel.Entry)
	}
	if string(c.DTB) != string(dtbBytes) {
		t.Fatalf("unexpected DTB bytes: %q", c.DTB)
	}
}
