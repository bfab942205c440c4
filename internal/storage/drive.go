package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// XLSXType is the media type used when uploading the workbook.
const XLSXType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Drive stores the workbook as a binary file on Google Drive. The Drive
// file version serves as the revision.
type Drive struct {
	files  *drive.FilesService
	fileID string
}

// NewDrive authenticates with service-account JSON credentials.
func NewDrive(ctx context.Context, credentials []byte, fileID string) (*Drive, error) {
	if fileID == "" {
		return nil, fmt.Errorf("drive file id is empty")
	}
	conf, err := google.JWTConfigFromJSON(credentials, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{files: svc.Files, fileID: fileID}, nil
}

func (d *Drive) Download(ctx context.Context) (Object, error) {
	rev, err := d.version(ctx)
	if err != nil {
		return Object{}, err
	}
	resp, err := d.files.Get(d.fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return Object{}, fmt.Errorf("download %s: %w", d.fileID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Object{}, fmt.Errorf("read %s: %w", d.fileID, err)
	}
	return Object{Data: data, Revision: rev}, nil
}

func (d *Drive) Upload(ctx context.Context, data []byte, ifRevision string) error {
	if ifRevision != "" {
		rev, err := d.version(ctx)
		if err != nil {
			return err
		}
		if rev != ifRevision {
			return ErrConflict
		}
	}
	_, err := d.files.Update(d.fileID, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(XLSXType)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload %s: %w", d.fileID, err)
	}
	return nil
}

func (d *Drive) version(ctx context.Context) (string, error) {
	f, err := d.files.Get(d.fileID).Fields("version").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", d.fileID, err)
	}
	return strconv.FormatInt(f.Version, 10), nil
}
