package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// formFieldEscaper escapes the quoted-string parts of Content-Disposition.
var formFieldEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildForm assembles a multipart body. The boundary is generated by the
// multipart writer; callers must use the returned content type verbatim and
// never force their own.
func buildForm(build func(w *multipart.Writer) error) (body *bytes.Buffer, contentType string, err error) {
	body = &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := build(writer); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// writeFilePart streams the file at path into a form file field carrying the
// given mime type.
func writeFilePart(w *multipart.Writer, field, path, mimeType string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", path, err)
	}
	defer file.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		formFieldEscaper.Replace(field), formFieldEscaper.Replace(filepath.Base(path))))
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy %s into form: %w", path, err)
	}

	return nil
}
