package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/config"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/testutil"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

// ── multipart 构造 ──

type fileSpec struct {
	name        string
	contentType string
	content     []byte
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func pngFile(name string) fileSpec {
	return fileSpec{name: name, contentType: "image/png", content: pngHeader}
}

func textFile(name, text string) fileSpec {
	return fileSpec{name: name, contentType: "text/plain", content: []byte(text)}
}

// oleFile 无法细分格式的 OLE 复合文档头
func oleFile(name, declared string) fileSpec {
	content := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 1024)...)
	return fileSpec{name: name, contentType: declared, content: content}
}

func buildForm(t *testing.T, fields map[string][]fileSpec) *multipart.Form {
	t.Helper()

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for field, files := range fields {
		for _, f := range files {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, f.name))
			h.Set("Content-Type", f.contentType)
			part, err := w.CreatePart(h)
			require.NoError(t, err)
			_, err = part.Write(f.content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

func (e *testEnv) countAttachments(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Attachment{}).Count(&n).Error)
	return n
}

func (e *testEnv) storedFiles(t *testing.T) int {
	t.Helper()
	objects, err := e.store.List(context.Background())
	require.NoError(t, err)
	return len(objects)
}

func newDefectFixture(t *testing.T, env *testEnv, role string) (*model.User, *model.Defect) {
	t.Helper()
	user := testutil.CreateUser(t, env.db, role)
	project := testutil.CreateProject(t, env.db, "Объект")
	return user, testutil.CreateDefect(t, env.db, project.ID, user.ID)
}

// ═══════════════════════════════════════════════════════════
// Upload
// ═══════════════════════════════════════════════════════════

func TestAttachmentService_UploadSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer, defect := newDefectFixture(t, env, model.RoleEngineer)

	form := buildForm(t, map[string][]fileSpec{
		UploadField: {pngFile("Фото.PNG"), textFile("notes.txt", "Трещина 2 мм")},
	})
	resp, err := env.svc.Attachment.Upload(ctx, defect.ID, form, env.actor(engineer))
	require.NoError(t, err)
	require.Len(t, resp, 2)

	types := map[string]string{}
	for _, a := range resp {
		types[a.FileName] = a.FileType
		assert.Equal(t, engineer.ID, a.UploadedBy)
	}
	assert.Equal(t, "image/png", types["Фото.PNG"])
	assert.Equal(t, "text/plain", types["notes.txt"])

	rows, err := env.repo.Attachment.ListByDefect(ctx, defect.ID)
	require.NoError(t, err)
	keyPattern := regexp.MustCompile(`^\d{4}-\d{2}/[0-9a-f-]{36}\.(png|txt)$`)
	for _, a := range rows {
		assert.Regexp(t, keyPattern, a.FilePath)
	}
	assert.Equal(t, 2, env.storedFiles(t))
}

func TestAttachmentService_UploadRejections(t *testing.T) {
	big := make([]byte, (1<<20)+1)
	for i := range big {
		big[i] = 'a'
	}
	six := make([]fileSpec, 6)
	for i := range six {
		six[i] = pngFile(fmt.Sprintf("p%d.png", i))
	}

	tests := []struct {
		name   string
		fields map[string][]fileSpec
		want   error
	}{
		{"too many files", map[string][]fileSpec{UploadField: six}, ErrTooManyFiles},
		{"too large after a valid file", map[string][]fileSpec{UploadField: {
			pngFile("ok.png"), {name: "big.txt", contentType: "text/plain", content: big},
		}}, ErrFileTooLarge},
		{"disallowed type after a valid file", map[string][]fileSpec{UploadField: {
			pngFile("ok.png"), {name: "page.html", contentType: "image/png", content: []byte("<html><body>x</body></html>")},
		}}, ErrUnsupportedType},
		{"unexpected field", map[string][]fileSpec{"photo": {pngFile("a.png")}}, ErrUnexpectedField},
		{"no files", map[string][]fileSpec{}, ErrNoFiles},
		{"ole with unknown declared type", map[string][]fileSpec{UploadField: {
			oleFile("old.bin", "application/octet-stream"),
		}}, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			engineer, defect := newDefectFixture(t, env, model.RoleEngineer)

			_, err := env.svc.Attachment.Upload(context.Background(), defect.ID, buildForm(t, tt.fields), env.actor(engineer))
			assert.ErrorIs(t, err, tt.want)

			assert.Zero(t, env.countAttachments(t), "不应保存任何记录")
			assert.Zero(t, env.storedFiles(t), "不应残留任何文件")
		})
	}
}

func TestAttachmentService_UploadOleFallback(t *testing.T) {
	env := newTestEnv(t)
	engineer, defect := newDefectFixture(t, env, model.RoleEngineer)

	form := buildForm(t, map[string][]fileSpec{UploadField: {oleFile("акт.doc", "application/msword")}})
	resp, err := env.svc.Attachment.Upload(context.Background(), defect.ID, form, env.actor(engineer))
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, "application/msword", resp[0].FileType)
}

func TestAttachmentService_UploadCleansUpWhenInsertFails(t *testing.T) {
	env := newTestEnv(t)
	engineer, defect := newDefectFixture(t, env, model.RoleEngineer)
	require.NoError(t, env.db.Migrator().DropTable(&model.Attachment{}))

	form := buildForm(t, map[string][]fileSpec{UploadField: {pngFile("a.png"), pngFile("b.png")}})
	_, err := env.svc.Attachment.Upload(context.Background(), defect.ID, form, env.actor(engineer))
	require.Error(t, err)
	assert.Zero(t, env.storedFiles(t))
}

func TestAttachmentService_UploadUnknownDefect(t *testing.T) {
	env := newTestEnv(t)
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)

	form := buildForm(t, map[string][]fileSpec{UploadField: {pngFile("a.png")}})
	_, err := env.svc.Attachment.Upload(context.Background(), "00000000-0000-0000-0000-000000000000", form, env.actor(engineer))
	assert.ErrorIs(t, err, ErrDefectNotFound)
}

// ═══════════════════════════════════════════════════════════
// Open / Delete
// ═══════════════════════════════════════════════════════════

func TestAttachmentService_OpenAndMissingFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer, defect := newDefectFixture(t, env, model.RoleEngineer)

	resp, err := env.svc.Attachment.Upload(ctx, defect.ID,
		buildForm(t, map[string][]fileSpec{UploadField: {textFile("r.txt", "содержимое")}}), env.actor(engineer))
	require.NoError(t, err)

	f, err := env.svc.Attachment.Open(ctx, resp[0].ID)
	require.NoError(t, err)
	data, err := io.ReadAll(f.Content)
	require.NoError(t, f.Content.Close())
	require.NoError(t, err)
	assert.Equal(t, "содержимое", string(data))
	assert.Equal(t, "r.txt", f.Name)
	assert.Equal(t, int64(len(data)), f.Size)

	row, err := env.repo.Attachment.GetByID(ctx, resp[0].ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Remove(ctx, row.FilePath))

	_, err = env.svc.Attachment.Open(ctx, resp[0].ID)
	assert.ErrorIs(t, err, ErrFileMissing)

	_, err = env.svc.Attachment.Open(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrAttachmentNotFound)
}

func TestAttachmentService_DeletePermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uploader, defect := newDefectFixture(t, env, model.RoleEngineer)
	otherEngineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	manager := testutil.CreateUser(t, env.db, model.RoleManager)

	resp, err := env.svc.Attachment.Upload(ctx, defect.ID,
		buildForm(t, map[string][]fileSpec{UploadField: {pngFile("a.png"), pngFile("b.png")}}), env.actor(uploader))
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.Attachment.Delete(ctx, resp[0].ID, env.actor(otherEngineer)), ErrAttachmentDenied)
	require.NoError(t, env.svc.Attachment.Delete(ctx, resp[0].ID, env.actor(uploader)))
	require.NoError(t, env.svc.Attachment.Delete(ctx, resp[1].ID, env.actor(manager)))

	assert.Zero(t, env.countAttachments(t))
	assert.Zero(t, env.storedFiles(t))
	assert.ErrorIs(t, env.svc.Attachment.Delete(ctx, resp[0].ID, env.actor(manager)), ErrAttachmentNotFound)
}

// ═══════════════════════════════════════════════════════════
// Reconcile
// ═══════════════════════════════════════════════════════════

func TestAttachmentService_Reconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer, defect := newDefectFixture(t, env, model.RoleEngineer)

	resp, err := env.svc.Attachment.Upload(ctx, defect.ID,
		buildForm(t, map[string][]fileSpec{UploadField: {pngFile("keep.png"), pngFile("lost.png")}}), env.actor(engineer))
	require.NoError(t, err)

	// lost.png 的文件丢失，另有一个无记录的孤立文件
	lost, err := env.repo.Attachment.GetByID(ctx, resp[1].ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Remove(ctx, lost.FilePath))
	require.NoError(t, env.store.Save(ctx, "2020-01/orphan.txt", strings.NewReader("x"), 1, "text/plain"))

	report, err := env.svc.Attachment.Reconcile(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.MissingFiles, 1)
	assert.Equal(t, resp[1].ID, report.MissingFiles[0].ID)
	require.Len(t, report.OrphanFiles, 1)
	assert.Equal(t, "2020-01/orphan.txt", report.OrphanFiles[0].Key)
	assert.Equal(t, int64(2), env.countAttachments(t), "仅报告时不修改数据")

	report, err = env.svc.Attachment.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.RemovedRows)
	assert.Equal(t, 1, report.RemovedFiles)

	assert.Equal(t, int64(1), env.countAttachments(t))
	assert.Equal(t, 1, env.storedFiles(t))

	report, err = env.svc.Attachment.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.MissingFiles)
	assert.Empty(t, report.OrphanFiles)
}

// staleListing 列举结果早于实际写入
type staleListing struct {
	storage.Storage
}

func (staleListing) List(context.Context) ([]storage.ObjectInfo, error) { return nil, nil }

func TestAttachmentService_ReconcileRechecksBeforeRemoving(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer, defect := newDefectFixture(t, env, model.RoleEngineer)

	_, err := env.svc.Attachment.Upload(ctx, defect.ID,
		buildForm(t, map[string][]fileSpec{UploadField: {pngFile("fresh.png")}}), env.actor(engineer))
	require.NoError(t, err)

	svc := NewAttachmentService(&config.UploadConfig{MaxFileSize: 1 << 20, MaxFiles: 5},
		env.repo, staleListing{Storage: env.store}, zap.NewNop())

	report, err := svc.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Len(t, report.MissingFiles, 1)
	assert.Equal(t, int64(0), report.RemovedRows, "文件仍存在时不删除记录")
	assert.Equal(t, int64(1), env.countAttachments(t))
}
