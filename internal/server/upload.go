// Package server stores uploaded files and announces them through the chat
// engine.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/chat"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// multipart framing and form fields on top of the file itself
const formOverhead = 1 << 20

var (
	errMissingFile        = errors.New("file is required")
	errMissingUsername    = errors.New("username is required")
	errFileTooLarge       = errors.New("file exceeds the size limit")
	errFileTypeNotAllowed = errors.New("file type is not allowed")
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type uploadStore struct {
	dir     string
	maxSize int64
	allowed []string
}

func newUploadStore(dir string, maxSize int64, allowed []string) *uploadStore {
	return &uploadStore{dir: dir, maxSize: maxSize, allowed: allowed}
}

// save validates and writes the file, returning the notice to broadcast.
func (u *uploadStore) save(username, filename string, size int64, file io.ReadSeeker) (chat.FileNotice, error) {
	if username == "" {
		return chat.FileNotice{}, errMissingUsername
	}
	if size > u.maxSize {
		return chat.FileNotice{}, errFileTooLarge
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return chat.FileNotice{}, fmt.Errorf("detect file type: %w", err)
	}
	if !lo.ContainsBy(u.allowed, detected.Is) {
		return chat.FileNotice{}, fmt.Errorf("%w: %s", errFileTypeNotAllowed, detected.String())
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return chat.FileNotice{}, fmt.Errorf("rewind upload: %w", err)
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return chat.FileNotice{}, fmt.Errorf("create upload dir: %w", err)
	}
	original := sanitizeFilename(filename)
	stored := uuid.NewString() + "-" + original

	dst, err := os.Create(filepath.Join(u.dir, stored))
	if err != nil {
		return chat.FileNotice{}, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(file, u.maxSize+1))
	if err != nil {
		return chat.FileNotice{}, fmt.Errorf("write file: %w", err)
	}
	if written > u.maxSize {
		_ = os.Remove(dst.Name())
		return chat.FileNotice{}, errFileTooLarge
	}

	return chat.FileNotice{
		Username:  username,
		Filename:  original,
		FilePath:  "/uploads/" + stored,
		Timestamp: time.Now().UTC(),
	}, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// UploadHandler accepts a multipart upload (fields "username" and "file"),
// stores it and broadcasts a file notice to every connection.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Upload endpoint only accepts POST requests.", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.maxSize+formOverhead)
	if err := r.ParseMultipartForm(s.uploads.maxSize + formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, errFileTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, errMissingFile.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	username := strings.TrimSpace(r.FormValue("username"))
	notice, err := s.uploads.save(username, header.Filename, header.Size, file)
	if err != nil {
		status := uploadErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.log.Error("Upload failed", zap.String("username", username), zap.Error(err))
			http.Error(w, "upload failed", status)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.engine.FileUploaded(notice)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(notice); err != nil {
		s.log.Warn("Error writing upload response", zap.Error(err))
	}
}

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, errMissingUsername), errors.Is(err, errMissingFile):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errFileTypeNotAllowed):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
