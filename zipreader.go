package binres

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/klauspost/compress/flate"
)

// zipEntry locates one candidate copy of an archive member. Crafted archives
// may carry several entries under the same name; candidates are tried in
// order until one decompresses.
type zipEntry struct {
	offset int64
	size   uint32
	method uint16
	file   *zip.File
}

type seekReaderAt interface {
	io.ReadSeeker
	io.ReaderAt
}

type zipArchive struct {
	r       seekReaderAt
	entries map[string][]zipEntry
	owned   *os.File
}

func openZip(name string) (*zipArchive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	a, err := openZipReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.owned = f
	return a, nil
}

// openZipReader indexes the archive, preferring the central directory and
// falling back to a scan for raw local file headers when archive/zip rejects
// the file. Android reads such archives, so the fallback has to as well.
func openZipReader(r seekReaderAt) (*zipArchive, error) {
	a := &zipArchive{r: r, entries: make(map[string][]zipEntry)}

	zr, err := tryReadZip(r)
	if err == nil {
		for _, zf := range zr.File {
			if zf.Method != zip.Store && zf.Method != zip.Deflate {
				// Anything but store is decompressed as deflate.
				zf.Method = zip.Deflate
			}
			cl := path.Clean(zf.Name)
			a.entries[cl] = append(a.entries[cl], zipEntry{file: zf})
		}
		return a, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	for {
		off, err := findNextFileHeader(a.r)
		if err != nil {
			return nil, err
		}
		if off == -1 {
			break
		}

		var hdr struct {
			Method   uint16
			_        [8]byte // mod time, mod date, crc32
			CompSize uint32
			_        uint32
			NameLen  uint16
			ExtraLen uint16
		}
		if _, err := a.r.Seek(off+8, io.SeekStart); err != nil {
			return nil, err
		}
		if err := binary.Read(a.r, binary.LittleEndian, &hdr); err != nil {
			return nil, err
		}
		name := make([]byte, hdr.NameLen)
		if _, err := io.ReadFull(a.r, name); err != nil {
			return nil, err
		}

		cl := path.Clean(string(name))
		a.entries[cl] = append([]zipEntry{{
			offset: off + 30 + int64(hdr.NameLen) + int64(hdr.ExtraLen),
			size:   hdr.CompSize,
			method: hdr.Method,
		}}, a.entries[cl]...)

		if _, err := a.r.Seek(off+4, io.SeekStart); err != nil {
			return nil, err
		}
	}
	if len(a.entries) == 0 {
		return nil, errors.New("no zip file headers found")
	}
	return a, nil
}

func (a *zipArchive) Close() error {
	if a.owned != nil {
		f := a.owned
		a.owned = nil
		return f.Close()
	}
	return nil
}

// ReadFile returns the contents of the named archive member.
func (a *zipArchive) ReadFile(name string) ([]byte, error) {
	entries := a.entries[name]
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s not found in archive", name)
	}

	var lastErr error
	for _, e := range entries {
		data, err := a.readEntry(e)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s: %w", name, lastErr)
}

func (a *zipArchive) readEntry(e zipEntry) ([]byte, error) {
	if e.file != nil {
		rc, err := e.file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	if _, err := a.r.Seek(e.offset, io.SeekStart); err != nil {
		return nil, err
	}
	if e.method == zip.Store {
		data := make([]byte, e.size)
		if _, err := io.ReadFull(a.r, data); err != nil {
			return nil, err
		}
		return data, nil
	}
	rc := newFlateReader(a.r)
	defer rc.Close()
	return io.ReadAll(rc)
}

// ExtractManifest reads the compiled AndroidManifest.xml entry of an apk.
func ExtractManifest(apk string) ([]byte, error) {
	return extractZipEntry(apk, "AndroidManifest.xml")
}

// extractZipEntry is the one-shot open, read, close path.
func extractZipEntry(archive, name string) ([]byte, error) {
	a, err := openZip(archive)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.ReadFile(name)
}

func tryReadZip(r seekReaderAt) (zr *zip.Reader, err error) {
	defer func() {
		if pn := recover(); pn != nil {
			err = fmt.Errorf("%v", pn)
			zr = nil
		}
	}()

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	zr, err = zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, newFlateReader)
	return zr, nil
}

var localFileHeaderMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// findNextFileHeader scans forward from the current position for a local file
// header signature and returns its offset, or -1 at end of file. The reader
// position is left untouched.
func findNextFileHeader(r io.ReadSeeker) (int64, error) {
	start, err := pos(r)
	if err != nil {
		return -1, err
	}
	defer r.Seek(start, io.SeekStart)

	buf := make([]byte, 64*1024)
	offset := start
	matched := 0
	for {
		n, err := r.Read(buf)
		if err != nil && err != io.EOF {
			return -1, err
		}
		if n == 0 {
			return -1, nil
		}
		for i := 0; i < n; i++ {
			if buf[i] != localFileHeaderMagic[matched] {
				matched = 0
				continue
			}
			matched++
			if matched == len(localFileHeaderMagic) {
				return offset + int64(i) - int64(len(localFileHeaderMagic)-1), nil
			}
		}
		offset += int64(n)
	}
}

var flateReaderPool sync.Pool

func newFlateReader(r io.Reader) io.ReadCloser {
	fr, ok := flateReaderPool.Get().(io.ReadCloser)
	if ok {
		fr.(flate.Resetter).Reset(r, nil)
	} else {
		fr = flate.NewReader(r)
	}
	return &pooledFlateReader{fr: fr}
}

type pooledFlateReader struct {
	mu sync.Mutex // guards Close and Read
	fr io.ReadCloser
}

func (r *pooledFlateReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return 0, errors.New("read after close")
	}
	return r.fr.Read(p)
}

func (r *pooledFlateReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.fr != nil {
		err = r.fr.Close()
		flateReaderPool.Put(r.fr)
		r.fr = nil
	}
	return err
}
