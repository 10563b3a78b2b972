package remote

import (
	"context"
	"errors"
	"io"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
)

// CredentialFunc resolves a server's credential reference into FTP login
// details. Credentials are provisioned out of band.
type CredentialFunc func(credentialID string) (user, password string, err error)

// FTPSource reads remote log files over FTP. A fresh connection is dialed
// per call; game hosts drop idle control connections aggressively.
type FTPSource struct {
	creds       CredentialFunc
	dialTimeout time.Duration
	logger      zerolog.Logger
}

func NewFTPSource(creds CredentialFunc, logger zerolog.Logger) *FTPSource {
	return &FTPSource{
		creds:       creds,
		dialTimeout: 10 * time.Second,
		logger:      logger,
	}
}

func (s *FTPSource) ListFiles(ctx context.Context, srv *domain.Server) ([]FileInfo, error) {
	conn, err := s.connect(ctx, srv)
	if err != nil {
		return nil, wrapFTPErr("list", err)
	}
	defer conn.Quit()

	var files []FileInfo
	for _, dir := range srv.LogDirs {
		entries, err := conn.List(dir)
		if err != nil {
			return nil, wrapFTPErr("list", err)
		}
		for _, e := range entries {
			if e.Type != ftp.EntryTypeFile {
				continue
			}
			files = append(files, FileInfo{
				ID:   path.Join(dir, e.Name),
				Size: int64(e.Size),
			})
		}
	}
	return files, nil
}

func (s *FTPSource) ReadFrom(ctx context.Context, srv *domain.Server, fileID string, offset int64) (io.ReadCloser, error) {
	conn, err := s.connect(ctx, srv)
	if err != nil {
		return nil, wrapFTPErr("read", err)
	}

	resp, err := conn.RetrFrom(fileID, uint64(offset))
	if err != nil {
		conn.Quit()
		return nil, wrapFTPErr("read", err)
	}

	return &ftpStream{resp: resp, conn: conn}, nil
}

func (s *FTPSource) connect(ctx context.Context, srv *domain.Server) (*ftp.ServerConn, error) {
	user, pass, err := s.creds(srv.CredentialID)
	if err != nil {
		return nil, &TransportError{Kind: KindPermissionDenied, Op: "connect", Err: err}
	}

	conn, err := ftp.Dial(srv.Host,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.dialTimeout),
	)
	if err != nil {
		return nil, err
	}

	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

// ftpStream ties the data connection and the control connection together so
// closing the stream releases both.
type ftpStream struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (s *ftpStream) Read(p []byte) (int, error) { return s.resp.Read(p) }

func (s *ftpStream) Close() error {
	err := s.resp.Close()
	if qerr := s.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

func wrapFTPErr(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	kind := KindUnreachable
	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch {
		case proto.Code == ftp.StatusFileUnavailable && !strings.Contains(strings.ToLower(proto.Msg), "permission"):
			kind = KindNotFound
		case proto.Code == ftp.StatusNotLoggedIn || proto.Code == ftp.StatusFileUnavailable:
			kind = KindPermissionDenied
		}
	}
	return &TransportError{Kind: kind, Op: op, Err: err}
}
