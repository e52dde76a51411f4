/*
NAME
  senders.go

DESCRIPTION
  senders.go provides the file destinations for split images and a sender
  that decouples the lexer from a destination through a pool buffer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package splitter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ausocean/pnmsplit/codec/codecutil"
	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
)

// Sender pool buffer consts.
const (
	filesPoolReadTimeout    = 250 * time.Millisecond
	filesBufferPoolMaxAlloc = 64 << 20 // 64MiB.
	minFreeSpace            = 50000000 // 50MB.
)

// fileSender writes images to local files. In multiFile mode each write is
// one image and goes to its own file named by sequence number, with the
// extension following the image's magic number. Otherwise images are appended
// to a file that is replaced once it would exceed maxFileSize.
type fileSender struct {
	file        *os.File
	multiFile   bool
	maxFileSize uint // maxFileSize is in bytes. A size of 0 means there is no size limit.
	minFree     uint64
	path        string
	seq         int
	log         logging.Logger
}

// newFileSender returns a new fileSender. Setting multiFile true will write a
// new file for each write to this sender. Directories named by path are
// created.
func newFileSender(l logging.Logger, path string, multiFile bool, maxFileSize uint) (*fileSender, error) {
	dir := filepath.Dir(path + "x")
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}
	return &fileSender{
		path:        path,
		log:         l,
		multiFile:   multiFile,
		maxFileSize: maxFileSize,
		minFree:     minFreeSpace,
	}, nil
}

// Write implements io.Writer.
func (s *fileSender) Write(d []byte) (int, error) {
	s.log.Debug("checking disk space")
	var stat syscall.Statfs_t
	if err := syscall.Statfs(filepath.Dir(s.path+"x"), &stat); err != nil {
		return 0, fmt.Errorf("could not read system disk space, abandoning write: %w", err)
	}
	availableSpace := stat.Bavail * uint64(stat.Bsize)
	s.log.Debug("available disk space in bytes", "availableSpace", availableSpace)
	if availableSpace < s.minFree {
		return 0, fmt.Errorf("reached limit of disk space with a buffer of %v bytes, abandoning write", s.minFree)
	}

	// If the write will exceed the max file size, close the file so that a new one can be created.
	if s.maxFileSize != 0 && s.file != nil {
		fileInfo, err := s.file.Stat()
		if err != nil {
			return 0, fmt.Errorf("could not read files stats: %w", err)
		}
		size := uint(fileInfo.Size())
		s.log.Debug("checked file size", "bytes", size)
		if size+uint(len(d)) > s.maxFileSize {
			s.log.Debug("new write would exceed max file size, closing existing file", "maxFileSize", s.maxFileSize)
			s.file.Close()
			s.file = nil
		}
	}

	if s.file == nil {
		fileName := s.name(d)
		s.log.Debug("creating new output file", "multiFile", s.multiFile, "fileName", fileName)
		f, err := os.Create(fileName)
		if err != nil {
			return 0, fmt.Errorf("could not create file to write images to: %w", err)
		}
		s.file = f
		s.seq++
	}

	s.log.Debug("writing to output file", "bytes", len(d))
	n, err := s.file.Write(d)
	if err != nil {
		return n, err
	}

	if s.multiFile {
		err = s.file.Close()
		s.file = nil
	}

	return n, err
}

// name returns the name of the next file to create for d.
func (s *fileSender) name(d []byte) string {
	if s.multiFile {
		return fmt.Sprintf("%s%06d.%s", s.path, s.seq, codecutil.Extension(magic(d)))
	}
	return fmt.Sprintf("%s%s_%d.%s", s.path, time.Now().Format("2006-01-02_15-04-05"), s.seq, codecutil.PNM)
}

func (s *fileSender) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// magic returns the magic number digit of the image in d, or 0 if there is no
// magic number.
func magic(d []byte) byte {
	i := bytes.IndexByte(d, 'P')
	if i < 0 || i+1 >= len(d) {
		return 0
	}
	return d[i+1]
}

// poolSender implements io.WriteCloser. Writes are copied into a pool buffer
// and an output routine writes each buffered image to dst, so that a slow
// destination does not hold up lexing.
type poolSender struct {
	dst  io.WriteCloser
	pool *pool.Buffer
	done chan struct{}
	log  logging.Logger
	wg   sync.WaitGroup
}

// newPoolSender returns a new poolSender. maxRecord is the largest image the
// lexer will produce, or 0 if unlimited.
func newPoolSender(dst io.WriteCloser, log logging.Logger, rb *pool.Buffer, maxRecord int) *poolSender {
	s := &poolSender{
		dst:  dst,
		pool: rb,
		done: make(chan struct{}),
		log:  log,
	}
	// Uncompressed images are large; let's increase the pool's max allowable
	// allocation.
	pool.MaxAlloc(max(filesBufferPoolMaxAlloc, maxRecord))
	s.wg.Add(1)
	go s.output()
	return s
}

// output starts a poolSender's data handling routine. Once Close has been
// called the routine drains the pool buffer before returning.
func (s *poolSender) output() {
	defer s.wg.Done()
	for {
		chunk, err := s.pool.Next(filesPoolReadTimeout)
		switch err {
		case nil:
		case pool.ErrTimeout:
			select {
			case <-s.done:
				s.log.Info("terminating sender output routine")
				return
			default:
				s.log.Debug("poolSender: pool buffer read timeout")
				continue
			}
		case io.EOF:
			s.log.Info("pool buffer closed, terminating sender output routine")
			return
		default:
			s.log.Error("unexpected error", "error", err.Error())
			continue
		}

		_, err = s.dst.Write(chunk.Bytes())
		if err != nil {
			s.log.Error("failed write", "error", err.Error())
		} else {
			s.log.Debug("good write")
		}
		chunk.Close()
	}
}

// Write implements io.Writer. An image that cannot be buffered is dropped
// with a warning.
func (s *poolSender) Write(d []byte) (int, error) {
	s.log.Debug("writing image to pool buffer for sending", "size", len(d))
	n, err := s.pool.Write(d)
	if err == nil {
		s.pool.Flush()
		return len(d), nil
	}
	s.log.Warning("pool buffer write error", "error", err.Error(), "n", n, "writeSize", len(d))
	return len(d), nil
}

// Close implements io.Closer.
func (s *poolSender) Close() error {
	s.log.Debug("closing sender output routine")
	close(s.done)
	s.wg.Wait()
	s.log.Info("sender output routine closed")
	return s.dst.Close()
}
