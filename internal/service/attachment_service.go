package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/config"
	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

// UploadField multipart 中承载附件的字段名
const UploadField = "files"

// ── 附件模块业务错误 ──

var (
	ErrFileTooLarge       = pkgerrors.Validation("файл слишком большой")
	ErrTooManyFiles       = pkgerrors.Validation("слишком много файлов")
	ErrUnexpectedField    = pkgerrors.Validation("неожиданное поле")
	ErrUnsupportedType    = pkgerrors.Validation("неподдерживаемый тип файла")
	ErrNoFiles            = pkgerrors.Validation("файлы не переданы")
	ErrAttachmentNotFound = pkgerrors.NotFound("Вложение не найдено")
	ErrFileMissing        = pkgerrors.NotFound("файл не найден на диске")
	ErrAttachmentDenied   = pkgerrors.Forbidden("Удалить вложение может администратор, менеджер или загрузивший его пользователь")
)

// OLE 复合文档（旧版 .doc/.xls）嗅探结果不区分具体格式，需参考客户端声明的类型
const oleStorageType = "application/x-ole-storage"

var oleDeclaredTypes = map[string]bool{
	"application/msword":       true,
	"application/vnd.ms-excel": true,
}

// AttachmentFile 下载/预览时返回的文件内容
type AttachmentFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.ReadCloser
}

// ReconcileReport 附件对账结果
type ReconcileReport struct {
	// MissingFiles 有记录但文件不存在
	MissingFiles []model.Attachment
	// OrphanFiles 有文件但没有对应记录
	OrphanFiles  []storage.ObjectInfo
	RemovedRows  int64
	RemovedFiles int
}

// AttachmentService 附件业务接口
type AttachmentService interface {
	// Upload 全部成功或全部回滚：任一文件失败时已写入的文件全部删除，不落库
	Upload(ctx context.Context, defectID string, form *multipart.Form, actor Actor) ([]dto.AttachmentResponse, error)
	List(ctx context.Context, defectID string) ([]dto.AttachmentResponse, error)
	Open(ctx context.Context, id string) (*AttachmentFile, error)
	Delete(ctx context.Context, id string, actor Actor) error
	Reconcile(ctx context.Context, fix bool) (*ReconcileReport, error)
}

type attachmentService struct {
	cfg     *config.UploadConfig
	repo    *repository.Repository
	store   storage.Storage
	logger  *zap.Logger
	allowed map[string]bool
	now     func() time.Time
}

// NewAttachmentService 创建 AttachmentService 实例
func NewAttachmentService(cfg *config.UploadConfig, repo *repository.Repository, store storage.Storage, logger *zap.Logger) AttachmentService {
	types := cfg.AllowedTypes
	if len(types) == 0 {
		types = config.DefaultAllowedTypes
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(t)] = true
	}
	return &attachmentService{
		cfg:     cfg,
		repo:    repo,
		store:   store,
		logger:  logger,
		allowed: allowed,
		now:     time.Now,
	}
}

// ────────────────────── Upload ──────────────────────

func (s *attachmentService) Upload(ctx context.Context, defectID string, form *multipart.Form, actor Actor) ([]dto.AttachmentResponse, error) {
	if _, err := s.repo.Defect.GetByID(ctx, defectID); err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}

	files, err := s.collect(form)
	if err != nil {
		return nil, err
	}

	var written []string
	cleanup := func() {
		for _, key := range written {
			if err := s.store.Remove(context.WithoutCancel(ctx), key); err != nil {
				s.logger.Warn("清理已上传文件失败", zap.String("key", key), zap.Error(err))
			}
		}
	}

	rows := make([]model.Attachment, 0, len(files))
	for _, fh := range files {
		row, err := s.saveOne(ctx, defectID, fh, actor)
		if err != nil {
			cleanup()
			return nil, err
		}
		written = append(written, row.FilePath)
		rows = append(rows, *row)
	}

	if err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		return tx.Attachment.CreateBatch(ctx, rows)
	}); err != nil {
		cleanup()
		s.logger.Error("保存附件记录失败", zap.String("defect_id", defectID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("附件已上传",
		zap.String("defect_id", defectID),
		zap.Int("count", len(rows)),
		zap.String("operator", actor.UserID),
	)
	return dto.NewAttachmentList(rows), nil
}

// collect 校验 multipart 字段与文件数量
func (s *attachmentService) collect(form *multipart.Form) ([]*multipart.FileHeader, error) {
	if form == nil {
		return nil, ErrNoFiles
	}
	for field := range form.File {
		if field != UploadField {
			return nil, ErrUnexpectedField
		}
	}
	files := form.File[UploadField]
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.maxFiles() {
		return nil, ErrTooManyFiles
	}
	return files, nil
}

func (s *attachmentService) saveOne(ctx context.Context, defectID string, fh *multipart.FileHeader, actor Actor) (*model.Attachment, error) {
	if fh.Size > s.maxFileSize() {
		return nil, ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("识别文件类型失败: %w", err)
	}
	contentType, ok := s.resolveType(detected, fh.Header.Get("Content-Type"))
	if !ok {
		return nil, ErrUnsupportedType
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("重置文件读取位置失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = detected.Extension()
	}
	key := s.now().Format("2006-01") + "/" + uuid.NewString() + ext

	if err := s.store.Save(ctx, key, f, fh.Size, contentType); err != nil {
		return nil, fmt.Errorf("保存文件失败: %w", err)
	}

	return &model.Attachment{
		DefectID:   defectID,
		FileName:   filepath.Base(fh.Filename),
		FilePath:   key,
		FileType:   contentType,
		FileSize:   fh.Size,
		UploadedBy: actor.UserID,
	}, nil
}

// resolveType 嗅探类型去掉参数后与白名单比对
func (s *attachmentService) resolveType(detected *mimetype.MIME, declared string) (string, bool) {
	t := stripParams(detected.String())
	if t == oleStorageType {
		d := stripParams(declared)
		if oleDeclaredTypes[d] && s.allowed[d] {
			return d, true
		}
		return t, false
	}
	return t, s.allowed[t]
}

func stripParams(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

func (s *attachmentService) maxFiles() int {
	if s.cfg.MaxFiles > 0 {
		return s.cfg.MaxFiles
	}
	return 5
}

func (s *attachmentService) maxFileSize() int64 {
	if s.cfg.MaxFileSize > 0 {
		return s.cfg.MaxFileSize
	}
	return 10 << 20
}

// ────────────────────── List / Open ──────────────────────

func (s *attachmentService) List(ctx context.Context, defectID string) ([]dto.AttachmentResponse, error) {
	if _, err := s.repo.Defect.GetByID(ctx, defectID); err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}
	items, err := s.repo.Attachment.ListByDefect(ctx, defectID)
	if err != nil {
		return nil, err
	}
	return dto.NewAttachmentList(items), nil
}

func (s *attachmentService) Open(ctx context.Context, id string) (*AttachmentFile, error) {
	a, err := s.repo.Attachment.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrAttachmentNotFound)
	}
	obj, err := s.store.Open(ctx, a.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			s.logger.Warn("附件文件缺失", zap.String("attachment_id", id), zap.String("key", a.FilePath))
			return nil, ErrFileMissing
		}
		return nil, err
	}
	return &AttachmentFile{
		Name:        a.FileName,
		ContentType: a.FileType,
		Size:        obj.Size,
		Content:     obj.ReadCloser,
	}, nil
}

// ────────────────────── Delete ──────────────────────

func (s *attachmentService) Delete(ctx context.Context, id string, actor Actor) error {
	a, err := s.repo.Attachment.GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrAttachmentNotFound)
	}
	if !actor.HasRole(model.RoleAdmin, model.RoleManager) && a.UploadedBy != actor.UserID {
		return ErrAttachmentDenied
	}
	if err := s.repo.Attachment.Delete(ctx, id); err != nil {
		return notFound(err, ErrAttachmentNotFound)
	}
	if err := s.store.Remove(ctx, a.FilePath); err != nil {
		s.logger.Warn("删除附件文件失败", zap.String("key", a.FilePath), zap.Error(err))
	}

	s.logger.Info("附件已删除", zap.String("attachment_id", id), zap.String("operator", actor.UserID))
	return nil
}

// ────────────────────── Reconcile ──────────────────────

func (s *attachmentService) Reconcile(ctx context.Context, fix bool) (*ReconcileReport, error) {
	rows, err := s.repo.Attachment.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("列出存储对象失败: %w", err)
	}

	stored := make(map[string]bool, len(objects))
	for _, o := range objects {
		stored[o.Key] = true
	}
	known := make(map[string]bool, len(rows))

	report := &ReconcileReport{}
	for _, a := range rows {
		known[a.FilePath] = true
		if !stored[a.FilePath] {
			report.MissingFiles = append(report.MissingFiles, a)
		}
	}
	for _, o := range objects {
		if !known[o.Key] {
			report.OrphanFiles = append(report.OrphanFiles, o)
		}
	}
	sort.Slice(report.OrphanFiles, func(i, j int) bool { return report.OrphanFiles[i].Key < report.OrphanFiles[j].Key })

	if !fix {
		return report, nil
	}

	// 删除记录前逐个复查，跳过列举之后才写入的文件
	ids := make([]string, 0, len(report.MissingFiles))
	for _, a := range report.MissingFiles {
		exists, err := s.store.Exists(ctx, a.FilePath)
		if err != nil {
			s.logger.Warn("复查附件文件失败", zap.String("key", a.FilePath), zap.Error(err))
			continue
		}
		if !exists {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) > 0 {
		if report.RemovedRows, err = s.repo.Attachment.DeleteByIDs(ctx, ids); err != nil {
			return report, err
		}
	}
	for _, o := range report.OrphanFiles {
		if err := s.store.Remove(ctx, o.Key); err != nil {
			s.logger.Warn("删除孤立文件失败", zap.String("key", o.Key), zap.Error(err))
			continue
		}
		report.RemovedFiles++
	}

	s.logger.Info("附件对账完成",
		zap.Int("missing_files", len(report.MissingFiles)),
		zap.Int("orphan_files", len(report.OrphanFiles)),
		zap.Int64("removed_rows", report.RemovedRows),
		zap.Int("removed_files", report.RemovedFiles),
	)
	return report, nil
}
