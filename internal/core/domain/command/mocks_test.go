package command

import (
	"context"
	"io"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"

	"github.com/stretchr/testify/mock"
)

type MockTextSender struct {
	mock.Mock
}

func (m *MockTextSender) SendChatAction(_ context.Context, _ int64, _ domain.Action) {
	// mocked
}

func (m *MockTextSender) NotifyAndReturnError(_ context.Context, err error, message *domain.Message) error {
	m.Called(err, message)
	return err
}

func (m *MockTextSender) SendMessageReply(ctx context.Context, message *domain.Message, text string) (int, error) {
	args := m.Called(ctx, message, text)
	return args.Int(0), args.Error(1)
}

type MockDocumentSender struct {
	mock.Mock
}

func (m *MockDocumentSender) SendDocumentReply(ctx context.Context, message *domain.Message, filename string,
	file []byte) error {
	args := m.Called(ctx, message, filename, file)
	return args.Error(0)
}

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) NewPath(files *domain.FileSet, role domain.Role, prefix, extension string) (string, error) {
	args := m.Called(files, role, prefix, extension)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) SaveUpload(files *domain.FileSet, r io.Reader, extension string) (string, error) {
	args := m.Called(files, r, extension)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) Replace(from, to string) error {
	return m.Called(from, to).Error(0)
}

func (m *MockFileStore) Size(path string) (int64, error) {
	args := m.Called(path)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileStore) Read(path string) ([]byte, error) {
	args := m.Called(path)
	buf, _ := args.Get(0).([]byte)
	return buf, args.Error(1)
}

func (m *MockFileStore) Download(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	buf, _ := args.Get(0).([]byte)
	return buf, args.Error(1)
}

func (m *MockFileStore) Directories() []string {
	return m.Called().Get(0).([]string)
}

// MockFormatter hands result to deliver when err is nil, the way a real
// pipeline would after a successful encode.
type MockFormatter struct {
	mock.Mock
	result domain.Attempt
}

func (m *MockFormatter) Process(ctx context.Context, upload io.Reader, extension string,
	deliver port.Deliver) error {
	buf, _ := io.ReadAll(upload)
	args := m.Called(buf, extension)
	if err := args.Error(0); err != nil {
		return err
	}

	return deliver(ctx, m.result)
}

type MockCleanup struct {
	pending int64
}

func (m *MockCleanup) Pending() int64 {
	return m.pending
}
