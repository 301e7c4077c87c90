package worldpop

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DownloaderOptions configures the raster mirror downloader.
type DownloaderOptions struct {
	Host    string // FTP host, port 21 assumed when absent
	Root    string // remote root directory, e.g. /GIS/Population
	Timeout time.Duration
}

// Downloader fetches gridded population raster tiles from the public
// FTP mirror for offline zonal work.
type Downloader struct {
	opts DownloaderOptions
}

// NewDownloader creates a Downloader.
func NewDownloader(opts DownloaderOptions) *Downloader {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Downloader{opts: opts}
}

func (d *Downloader) host() string {
	h := d.opts.Host
	if _, _, err := net.SplitHostPort(h); err != nil {
		h = net.JoinHostPort(h, "21")
	}
	return h
}

// ftpConnReader ties the FTP data stream to its control connection so a
// single Close releases both.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "worldpop: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "worldpop: quit ftp connection")
	}
	return nil
}

// Open retrieves a raster file under the mirror root and returns a
// reader. The caller must close it to release the FTP connection.
func (d *Downloader) Open(ctx context.Context, remoteName string) (io.ReadCloser, error) {
	remote := path.Join(d.opts.Root, remoteName)
	zap.L().Debug("worldpop: ftp retrieve",
		zap.String("host", d.opts.Host),
		zap.String("path", remote),
	)

	conn, err := ftp.Dial(d.host(), ftp.DialWithTimeout(d.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "worldpop: ftp dial")
	}

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "worldpop: ftp login")
	}

	resp, err := conn.Retr(remote)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "worldpop: ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// Fetch downloads a raster file into destDir, keeping the remote file
// name. Returns the local path and bytes written.
func (d *Downloader) Fetch(ctx context.Context, remoteName, destDir string) (string, int64, error) {
	rc, err := d.Open(ctx, remoteName)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = rc.Close() }()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", 0, eris.Wrap(err, "worldpop: create dest dir")
	}

	dest := filepath.Join(destDir, path.Base(remoteName))
	f, err := os.Create(dest)
	if err != nil {
		return "", 0, eris.Wrap(err, "worldpop: create file")
	}
	defer func() { _ = f.Close() }()

	n, err := io.Copy(f, rc)
	if err != nil {
		return dest, n, eris.Wrap(err, "worldpop: write file")
	}

	zap.L().Info("worldpop: raster downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, n, nil
}
