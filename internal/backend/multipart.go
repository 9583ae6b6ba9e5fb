package backend

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
)

// MultipartStream encodes one file as a multipart/form-data body while the
// request reads it, so the file is never held in memory.
type MultipartStream struct {
	reader      *io.PipeReader
	contentType string
	done        chan error
}

// NewMultipartStream starts encoding src as form field field with the given
// file name. The caller must pass Body to exactly one request and then call
// Wait.
func NewMultipartStream(field, fileName string, src io.Reader) *MultipartStream {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	s := &MultipartStream{
		reader:      pr,
		contentType: writer.FormDataContentType(),
		done:        make(chan error, 1),
	}
	go func() {
		err := writeMultipartFile(writer, field, fileName, src)
		_ = pw.CloseWithError(err)
		s.done <- err
	}()
	return s
}

// Body is the request body.
func (s *MultipartStream) Body() io.ReadCloser {
	return s.reader
}

// ContentType carries the multipart boundary.
func (s *MultipartStream) ContentType() string {
	return s.contentType
}

// Wait stops the encoder if the request ended early and returns the error from
// reading src, if any. A body abandoned by the request is not an error here.
func (s *MultipartStream) Wait() error {
	_ = s.reader.Close()
	err := <-s.done
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

func writeMultipartFile(writer *multipart.Writer, field, fileName string, src io.Reader) error {
	part, err := writer.CreateFormFile(field, fileName)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return err
		}
		return fmt.Errorf("read dataset file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}
	return nil
}
