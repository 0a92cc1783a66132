package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
)

// ── 报表模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成报表文件失败")

// 导出格式
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
)

const (
	csvContentType   = "text/csv; charset=utf-8"
	excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	csvDateLayout   = "02.01.2006"
	excelDateFormat = "dd.mm.yyyy"

	utf8BOM = "\ufeff"
)

// 工作表名称
const (
	sheetSummary = "Сводка"
	sheetStages  = "Этапы"
	sheetDefects = "Дефекты"
)

var defectHeader = []string{
	"ID", "Заголовок", "Описание", "Местоположение", "Проект", "Этап", "Статус", "Приоритет",
	"Автор", "Исполнитель", "Срок устранения", "Дата создания", "Дата закрытия",
}

var stageHeader = []string{"Название", "Статус", "Дата начала", "Дата окончания", "Дефектов"}

var summaryHeader = []string{"Показатель", "Значение"}

// ExportFile 生成的报表文件
type ExportFile struct {
	Data        *bytes.Buffer
	FileName    string
	ContentType string
}

// ReportService 报表与统计业务接口
//
// 导出结果整体在内存中生成，适用于单项目或筛选后的缺陷规模。
type ReportService interface {
	ExportDefects(ctx context.Context, req *dto.ExportDefectsRequest) (*ExportFile, error)
	ExportProject(ctx context.Context, projectID string, req *dto.ExportProjectRequest) (*ExportFile, error)
	Statistics(ctx context.Context, req *dto.StatisticsRequest) (*dto.StatisticsResponse, error)
}

type reportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, logger *zap.Logger) ReportService {
	return &reportService{repo: repo, logger: logger, now: time.Now}
}

// table 与输出格式无关的表格数据
// 单元格取值：string、int64、time.Time（按日期输出）或 nil
type table struct {
	name   string
	header []string
	rows   [][]interface{}
}

// ═══════════════════════════════════════════════════════════
// ExportDefects 按筛选条件导出缺陷清单
// ═══════════════════════════════════════════════════════════

func (s *reportService) ExportDefects(ctx context.Context, req *dto.ExportDefectsRequest) (*ExportFile, error) {
	defects, _, err := s.repo.Defect.List(ctx, repository.DefectFilter{
		ProjectID: req.ProjectID,
		Status:    req.Status,
	})
	if err != nil {
		s.logger.Error("查询导出缺陷失败", zap.Error(err))
		return nil, err
	}

	tables := []table{defectTable(defects)}
	name := "defects_" + s.now().Format("20060102")
	return s.render(req.Format, name, tables)
}

// ═══════════════════════════════════════════════════════════
// ExportProject 导出单个项目的汇总、阶段与缺陷
// ═══════════════════════════════════════════════════════════

func (s *reportService) ExportProject(ctx context.Context, projectID string, req *dto.ExportProjectRequest) (*ExportFile, error) {
	project, err := s.repo.Project.GetWithStages(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}

	defects, _, err := s.repo.Defect.List(ctx, repository.DefectFilter{ProjectID: projectID})
	if err != nil {
		s.logger.Error("查询项目缺陷失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}

	perStage := make(map[string]int64)
	for _, d := range defects {
		if d.StageID != nil {
			perStage[*d.StageID]++
		}
	}

	tables := []table{
		s.summaryTable(project, defects),
		stageTable(project.Stages, perStage),
		defectTable(defects),
	}
	name := fmt.Sprintf("project_%s_%s", safeName(project.Name), s.now().Format("20060102"))
	return s.render(req.Format, name, tables)
}

func (s *reportService) summaryTable(p *model.Project, defects []model.Defect) table {
	manager := ""
	if p.Manager != nil {
		manager = p.Manager.FullName()
	}

	byStatus := make(map[model.DefectStatus]int64)
	var overdue int64
	now := s.now()
	for i := range defects {
		byStatus[defects[i].Status]++
		if defects[i].IsOverdue(now) {
			overdue++
		}
	}

	rows := [][]interface{}{
		{"Проект", p.Name},
		{"Адрес", p.Address},
		{"Статус", string(p.Status)},
		{"Приоритет", string(p.Priority)},
		{"Менеджер", manager},
		{"Дата начала", dateValue(p.StartDate)},
		{"Дата окончания", dateValue(p.EndDate)},
		{"Этапов", int64(len(p.Stages))},
		{"Всего дефектов", int64(len(defects))},
	}
	for _, st := range model.DefectStatuses {
		rows = append(rows, []interface{}{"Дефектов со статусом «" + string(st) + "»", byStatus[st]})
	}
	rows = append(rows, []interface{}{"Просрочено", overdue})

	return table{name: sheetSummary, header: summaryHeader, rows: rows}
}

func stageTable(stages []model.ProjectStage, perStage map[string]int64) table {
	rows := make([][]interface{}, 0, len(stages))
	for _, st := range stages {
		rows = append(rows, []interface{}{
			st.Name,
			string(st.Status),
			dateValue(st.StartDate),
			dateValue(st.EndDate),
			perStage[st.ID],
		})
	}
	return table{name: sheetStages, header: stageHeader, rows: rows}
}

func defectTable(defects []model.Defect) table {
	rows := make([][]interface{}, 0, len(defects))
	for i := range defects {
		d := &defects[i]
		var project, stage, reporter, assignee string
		if d.Project != nil {
			project = d.Project.Name
		}
		if d.Stage != nil {
			stage = d.Stage.Name
		}
		if d.Reporter != nil {
			reporter = d.Reporter.FullName()
		}
		if d.Assignee != nil {
			assignee = d.Assignee.FullName()
		}

		var closed interface{}
		if d.ClosedAt != nil {
			closed = truncateDate(*d.ClosedAt)
		}

		rows = append(rows, []interface{}{
			d.ID,
			d.Title,
			d.Description,
			d.Location,
			project,
			stage,
			string(d.Status),
			string(d.Priority),
			reporter,
			assignee,
			dateValue(d.DueDate),
			truncateDate(d.CreatedAt),
			closed,
		})
	}
	return table{name: sheetDefects, header: defectHeader, rows: rows}
}

// ────────────────────── Statistics ──────────────────────

func (s *reportService) Statistics(ctx context.Context, req *dto.StatisticsRequest) (*dto.StatisticsResponse, error) {
	byStatus, err := s.repo.Defect.CountBy(ctx, "status", req.ProjectID)
	if err != nil {
		return nil, err
	}
	byPriority, err := s.repo.Defect.CountBy(ctx, "priority", req.ProjectID)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.Defect.CountOverdue(ctx, req.ProjectID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	resp := &dto.StatisticsResponse{
		ByStatus:   make(map[string]int64, len(model.DefectStatuses)),
		ByPriority: make(map[string]int64, len(model.Priorities)),
		Overdue:    overdue,
	}
	for _, st := range model.DefectStatuses {
		resp.ByStatus[string(st)] = byStatus[string(st)]
		resp.Total += byStatus[string(st)]
	}
	for _, p := range model.Priorities {
		resp.ByPriority[string(p)] = byPriority[string(p)]
	}
	return resp, nil
}

// ── 渲染 ──

func (s *reportService) render(format, name string, tables []table) (*ExportFile, error) {
	if format == FormatExcel {
		buf, err := writeExcel(tables)
		if err != nil {
			s.logger.Error("写入 Excel 失败", zap.Error(err))
			return nil, ErrExportGenerateFail
		}
		return &ExportFile{Data: buf, FileName: name + ".xlsx", ContentType: excelContentType}, nil
	}

	buf, err := writeCSV(tables)
	if err != nil {
		s.logger.Error("写入 CSV 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return &ExportFile{Data: buf, FileName: name + ".csv", ContentType: csvContentType}, nil
}

// writeCSV 多个表格之间以空行分隔
func writeCSV(tables []table) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(buf)
	w.Comma = ';'
	for i, t := range tables {
		if i > 0 {
			if err := w.Write(nil); err != nil {
				return nil, err
			}
		}
		if err := w.Write(t.header); err != nil {
			return nil, err
		}
		for _, row := range t.rows {
			record := make([]string, len(row))
			for c, v := range row {
				record[c] = csvValue(v)
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf, w.Error()
}

func csvValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.Format(csvDateLayout)
	default:
		return fmt.Sprint(v)
	}
}

func writeExcel(tables []table) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, err
	}
	dateFmt := excelDateFormat
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return nil, err
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			return nil, err
		}

		for c, h := range t.header {
			if err := f.SetCellValue(t.name, cellName(c, 0), h); err != nil {
				return nil, err
			}
		}
		last := cellName(len(t.header)-1, 0)
		if err := f.SetCellStyle(t.name, "A1", last, headerStyle); err != nil {
			return nil, err
		}
		lastCol, _ := excelize.ColumnNumberToName(len(t.header))
		if err := f.SetColWidth(t.name, "A", lastCol, 20); err != nil {
			return nil, err
		}

		for r, row := range t.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell := cellName(c, r+1)
				if err := f.SetCellValue(t.name, cell, v); err != nil {
					return nil, err
				}
				if _, ok := v.(time.Time); ok {
					if err := f.SetCellStyle(t.name, cell, cell, dateStyle); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	f.SetActiveSheet(0)

	return f.WriteToBuffer()
}

// cellName 从 0 开始的列、行下标转单元格名
func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row+1)
	return name
}

// dateValue 空日期输出为空单元格
func dateValue(d *datatypes.Date) interface{} {
	if d == nil {
		return nil
	}
	return truncateDate(time.Time(*d))
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// safeName 文件名中只保留字母与数字
func safeName(s string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
	if out == "" {
		return "project"
	}
	return out
}
