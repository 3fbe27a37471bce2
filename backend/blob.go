package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalBlobStore хранит файлы в каталоге и отдает их по публичному URL
type LocalBlobStore struct {
	root    string
	baseURL string
}

// NewLocalBlobStore создает хранилище в каталоге root
func NewLocalBlobStore(root, baseURL string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог хранилища: %w", err)
	}
	return &LocalBlobStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root возвращает каталог хранилища
func (s *LocalBlobStore) Root() string {
	return s.root
}

// Upload сохраняет файл по относительному пути и возвращает его URL
func (s *LocalBlobStore) Upload(ctx context.Context, name string, r io.Reader, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := path.Clean("/" + filepath.ToSlash(name))
	if clean == "/" || strings.Contains(name, "..") {
		return "", NewError(CodeInvalidArgument, fmt.Sprintf("недопустимый путь файла %q", name), nil)
	}
	clean = strings.TrimPrefix(clean, "/")

	target := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("не удалось создать каталог: %w", err)
	}

	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("не удалось создать файл: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("ошибка записи файла: %w", err)
	}

	return s.baseURL + "/" + clean, nil
}
