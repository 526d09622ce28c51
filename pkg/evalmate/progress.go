package evalmate

import "io"

// ProgressFunc receives transport progress while an upload body is sent.
type ProgressFunc func(sent, total int64)

// UploadFile is an in-memory file payload for the multipart endpoints.
// Uploads are buffered fully before sending so the total size is known and
// the body can be sniffed beforehand.
type UploadFile struct {
	Name string
	Data []byte
}

// progressReader reports cumulative bytes drained from the request body.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}
