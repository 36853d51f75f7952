package inventory

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yeka/zip"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/task"
)

// winzipAESExtraID tags the extra field that carries the AES key strength.
const winzipAESExtraID = 0x9901

// aesBits returns the AES key size recorded in a zip extra field, or 0.
func aesBits(extra []byte) int {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		extra = extra[4:]
		if size > len(extra) {
			return 0
		}
		if id == winzipAESExtraID && size >= 7 {
			switch extra[4] {
			case 1:
				return 128
			case 2:
				return 192
			case 3:
				return 256
			}
			return 0
		}
		extra = extra[size:]
	}
	return 0
}

// expectedBits maps the SNMP privacy protocol onto the archive key size.
// AES-128 is the default.
func expectedBits(privProtocol string) int {
	switch privProtocol {
	case PrivAES192, PrivCiscoAES192:
		return 192
	case PrivAES256, PrivCiscoAES256:
		return 256
	default:
		return 128
	}
}

func isZip(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("PK\x03\x04"))
}

// unpack returns the CSV inside an export archive, decrypting it with
// password when the entry is encrypted.
func unpack(raw []byte, password string, wantBits int) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open export archive: %w", err)
	}
	idx := slices.IndexFunc(zr.File, func(f *zip.File) bool {
		return strings.EqualFold(path.Ext(f.Name), ".csv")
	})
	if idx < 0 {
		if len(zr.File) == 0 {
			return nil, errors.New("export archive is empty")
		}
		idx = 0
	}
	f := zr.File[idx]
	if f.IsEncrypted() {
		if got := aesBits(f.Extra); got != 0 && got != wantBits {
			log.Warn().
				Str("file", f.Name).
				Int("archive_bits", got).
				Int("expected_bits", wantBits).
				Msg("Export archive key size differs from the SNMP privacy protocol")
		}
		f.SetPassword(password)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", f.Name, err)
	}
	return data, nil
}

// exportName derives the CSV name from the server filename, or from the date.
func exportName(server string, now time.Time) string {
	if server != "" {
		base := filepath.Base(server)
		return strings.TrimSuffix(base, filepath.Ext(base)) + ".csv"
	}
	return "devices-" + now.Format("01-02-2006") + ".csv"
}

type exporter struct {
	dir string
	now time.Time
}

// run exports ids in chunks and merges every chunk into one CSV. The header
// and the filename come from the first chunk.
func (x exporter) run(ctx context.Context, run *reconcile.Run, d *playbook.InventoryDevices, ids []string) (string, error) {
	e := d.ExportDeviceList
	outcomes, err := task.RunChunked(ctx, run.Tasks, "devices", "export_device_list", ids, MaxExportDevices,
		func(chunk []string) catalyst.Params {
			req := ExportRequest{DeviceUUIDs: chunk, OperationEnum: e.OperationEnum, Parameters: e.Parameters}
			if e.OperationEnum == ExportCredentials {
				req.Password = e.Password
			}
			sent := req
			if sent.Password != "" {
				sent.Password = "********"
			}
			run.Record.Sent(sent)
			return catalyst.Params{catalyst.PayloadParam: req}
		}, task.Completed())
	if err != nil {
		return "", err
	}

	var (
		header []string
		rows   [][]string
		name   string
	)
	for i, out := range outcomes {
		url := out.Status.AdditionalStatusURL
		if url == "" {
			return "", fmt.Errorf("export task %s returned no file", out.TaskID)
		}
		resp, err := run.Exec.Exec(ctx, "file", "download_a_file_by_fileid", catalyst.Params{"fileId": path.Base(url)})
		if err != nil {
			return "", fmt.Errorf("download export %s: %w", path.Base(url), err)
		}
		data := resp.Raw
		if isZip(data) {
			if data, err = unpack(data, e.Password, expectedBits(d.SNMPPrivProtocol)); err != nil {
				return "", err
			}
		}
		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			return "", fmt.Errorf("parse export chunk %d: %w", i, err)
		}
		if len(records) == 0 {
			continue
		}
		if header == nil {
			header, name = records[0], exportName(resp.Filename, x.now)
		}
		if slices.Equal(records[0], header) {
			records = records[1:]
		}
		rows = append(rows, records...)
	}
	if header == nil {
		return "", errors.New("export returned no rows")
	}

	file := filepath.Join(x.dir, name)
	fh, err := os.Create(file)
	if err != nil {
		return "", err
	}
	w := csv.NewWriter(fh)
	if err := w.WriteAll(append([][]string{header}, rows...)); err != nil {
		fh.Close()
		return "", err
	}
	if err := fh.Close(); err != nil {
		return "", err
	}
	log.Info().Str("file", file).Int("devices", len(rows)).Msg("Device export written")
	return file, nil
}
