package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// UploadsPrefix is the URL prefix receipt files are served under.
const UploadsPrefix = "/uploads/"

// DefaultMaxReceiptBytes caps a single receipt upload.
const DefaultMaxReceiptBytes int64 = 5_000_000

const tmpSuffix = ".tmp"

var allowedReceiptExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".pdf":  true,
}

var allowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"application/pdf": true,
}

// ReceiptService stores uploaded receipt files in a local directory.
type ReceiptService struct {
	uploadDir string
	maxBytes  int64
}

// StoredReceipt describes a file written by Save.
type StoredReceipt struct {
	Path     string
	Name     string
	Size     int64
	Checksum string
}

// ReceiptFile is an entry of the upload directory.
type ReceiptFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

func NewReceiptService(uploadDir string, maxBytes int64) (*ReceiptService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create upload dir %s", uploadDir)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReceiptBytes
	}
	return &ReceiptService{uploadDir: uploadDir, maxBytes: maxBytes}, nil
}

func (s *ReceiptService) Dir() string {
	return s.uploadDir
}

func (s *ReceiptService) MaxBytes() int64 {
	return s.maxBytes
}

// CheckType reports ErrUnsupportedFileType unless both the extension of
// filename and the declared content type are on the allow-list.
func CheckType(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedReceiptExts[ext] {
		return ErrUnsupportedFileType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ErrUnsupportedFileType
	}
	if !allowedReceiptTypes[strings.ToLower(mediaType)] {
		return ErrUnsupportedFileType
	}
	return nil
}

// Save streams r into a new file. The write goes to a temp file that is
// renamed into place only after it is synced, so a rejected or failed upload
// leaves nothing in the upload directory.
func (s *ReceiptService) Save(filename, contentType string, r io.Reader) (*StoredReceipt, error) {
	if err := CheckType(filename, contentType); err != nil {
		return nil, err
	}

	name := receiptName(filename)
	fullPath := filepath.Join(s.uploadDir, name)
	tmpPath := fullPath + tmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, storageErr("create receipt", err)
	}

	hasher := sha256.New()
	limited := io.LimitReader(r, s.maxBytes+1)
	size, err := io.Copy(f, io.TeeReader(limited, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, storageErr("write receipt", err)
	}
	if size > s.maxBytes {
		f.Close()
		os.Remove(tmpPath)
		return nil, ErrFileTooLarge
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, storageErr("sync receipt", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, storageErr("close receipt", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, storageErr("rename receipt", err)
	}

	return &StoredReceipt{
		Path:     UploadsPrefix + name,
		Name:     name,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Delete removes the file a receiptPath points at. A missing file is not an
// error.
func (s *ReceiptService) Delete(receiptPath string) error {
	name := ReceiptName(receiptPath)
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.uploadDir, name))
	if err != nil && !os.IsNotExist(err) {
		return storageErr("delete receipt", err)
	}
	return nil
}

// List returns the stored receipt files sorted by name. In-flight temp files
// are skipped.
func (s *ReceiptService) List() ([]ReceiptFile, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, storageErr("list receipts", err)
	}

	files := make([]ReceiptFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, storageErr("stat receipt", err)
		}
		files = append(files, ReceiptFile{
			Name:    e.Name(),
			Path:    UploadsPrefix + e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ReceiptName extracts the stored file name from a receiptPath. Both
// "/uploads/x" and the legacy "uploads/x" forms resolve to "x".
func ReceiptName(receiptPath string) string {
	p := strings.TrimSpace(receiptPath)
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	base := path.Base(filepath.ToSlash(p))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// receiptName builds <unix-millis>-<uuid8><ext>.
func receiptName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return ts + "-" + uuid.New().String()[:8] + ext
}
