package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeDefault fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 帳本資料建議使用
	FileModePrivate fs.FileMode = 0600
)

var (
	// ErrCorrupt 檔案中段 (非尾端) 有無法解析的紀錄
	ErrCorrupt = errors.New("wal: corrupt record")

	// ErrFailed 寫入失敗且無法回滾，之後的 Append 一律拒絕，
	// 直到重新開檔並 Replay 為止
	ErrFailed = errors.New("wal: journal failed")
)

// File 是 WAL 需要的 *os.File 方法子集 (測試時可注入錯誤)
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
	Stat() (fs.FileInfo, error)
}

// WAL 是只追加的 JSON Lines 日誌。
// 每次 Append 在回傳前都會 fsync，一筆紀錄就是一個持久化單位。
type WAL struct {
	file   File
	mu     sync.Mutex
	broken error
}

// Open 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string, mode fs.FileMode) (*WAL, error) {
	if mode == 0 {
		mode = FileModeDefault
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, mode)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return New(file), nil
}

// New 包裝一個已開啟的檔案，寫入必須落在檔案末尾 (O_APPEND)
func New(file File) *WAL {
	return &WAL{file: file}
}

// Append 寫入一筆資料並強制刷入硬碟。
//
// 寫入或 Sync 失敗時會把檔案截回寫入前的大小，回報失敗的紀錄不會在 Replay 時出現。
// 若截斷本身也失敗，WAL 進入 ErrFailed 狀態。
func (w *WAL) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wal: encode: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return fmt.Errorf("%w: %w", ErrFailed, w.broken)
	}
	info, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("wal: stat: %w", err)
	}
	size := info.Size()

	if _, err := w.file.Write(line); err != nil {
		return w.rollback(size, fmt.Errorf("wal: write: %w", err))
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(size, fmt.Errorf("wal: sync: %w", err))
	}
	return nil
}

// rollback 在 Append 失敗後把檔案截回 size
func (w *WAL) rollback(size int64, cause error) error {
	if err := w.truncate(size); err != nil {
		w.broken = err
		return fmt.Errorf("%w: %w (rollback: %w)", ErrFailed, cause, err)
	}
	return cause
}

// Replay 依寫入順序把每筆紀錄交給 fn。
//
// 尾端殘缺的紀錄 (Append 途中當機) 會被截掉，下一次 Append 從乾淨的一行開始。
// 尾端以前無法解析的紀錄回傳 ErrCorrupt。
func (w *WAL) Replay(fn func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	reader := bufio.NewReader(w.file)

	var good int64
	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("wal: read: %w", readErr)
		}
		complete := len(line) > 0 && line[len(line)-1] == '\n'
		body := bytes.TrimSpace(line)

		if len(body) > 0 {
			if !complete || !json.Valid(body) {
				if readErr == nil {
					return fmt.Errorf("%w at offset %d", ErrCorrupt, good)
				}
				return w.truncate(good)
			}
			if err := fn(json.RawMessage(body)); err != nil {
				return err
			}
		}
		good += int64(len(line))
		if readErr != nil {
			return nil
		}
	}
}

func (w *WAL) truncate(size int64) error {
	if err := w.file.Truncate(size); err != nil {
		return fmt.Errorf("wal: truncate to %d: %w", size, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync after truncate: %w", err)
	}
	return nil
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
