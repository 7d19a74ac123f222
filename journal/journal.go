// Package journal keeps a rotating JSON-lines log of every capture and
// duplication run.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vearne/pcapkit/model"
	"github.com/vearne/pcapkit/size"
	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "pcapkit-runs.log"

func IsValidDir(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err != nil {
		return errors.Wrap(err, "invalid directory")
	}
	if !info.IsDir() {
		return errors.Errorf("%v is not directory", dirPath)
	}
	return nil
}

type Config struct {
	// MaxSize is the size of the journal file before it gets rotated.
	MaxSize size.Size `json:"maxSize"`
	// MaxBackups is the maximum number of old journal files to retain.
	MaxBackups int `json:"maxBackups"`
	// MaxAge is the maximum number of days to retain old journal files based
	// on the timestamp encoded in their filename.
	MaxAge int `json:"maxAge"`
}

type Journal struct {
	sync.Mutex
	logger *lumberjack.Logger
}

func New(dir string, cf Config) (*Journal, error) {
	if err := IsValidDir(dir); err != nil {
		return nil, err
	}
	if cf.MaxSize < 0 || cf.MaxBackups < 0 || cf.MaxAge < 0 {
		return nil, errors.Errorf("invalid journal config %+v", cf)
	}
	return &Journal{
		logger: &lumberjack.Logger{
			Filename:   filepath.Join(dir, FileName),
			MaxSize:    cf.MaxSize.Megabytes(), // megabytes
			MaxBackups: cf.MaxBackups,
			MaxAge:     cf.MaxAge, //days
			Compress:   true,
		},
	}, nil
}

// NewRecord starts a record for a run beginning now.
func NewRecord(op, source, destination string) model.Record {
	return model.Record{
		ID:          uuid.New().String(),
		Op:          op,
		Source:      source,
		Destination: destination,
		Started:     time.Now(),
	}
}

// Finish stamps the elapsed time and outcome of a run.
func Finish(rec model.Record, packets int, err error) model.Record {
	rec.Packets = packets
	rec.ElapsedMs = time.Since(rec.Started).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func (j *Journal) Append(rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal journal record")
	}
	data = append(data, '\n')

	j.Lock()
	defer j.Unlock()
	if _, err = j.logger.Write(data); err != nil {
		return errors.Wrapf(err, "append to %v", j.logger.Filename)
	}
	return nil
}

func (j *Journal) Filename() string {
	return j.logger.Filename
}

func (j *Journal) Close() error {
	return j.logger.Close()
}
