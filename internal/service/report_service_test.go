package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/testutil"
)

func seedReportData(t *testing.T, env *testEnv) (*model.Project, *model.User) {
	t.Helper()
	manager := testutil.CreateUser(t, env.db, model.RoleManager)
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	project := testutil.CreateProject(t, env.db, "ЖК Южный")
	stage := testutil.CreateStage(t, env.db, project.ID, "Каркас")

	testutil.CreateDefect(t, env.db, project.ID, manager.ID, func(d *model.Defect) {
		d.Title = "Отклонение колонны"
		d.Description = "Отклонение от вертикали;\nтребуется замер"
		d.StageID = &stage.ID
		d.AssignedTo = &engineer.ID
		d.DueDate = testutil.Date(2026, 2, 1)
		d.Priority = model.PriorityHigh
	})
	closedAt := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	testutil.CreateDefect(t, env.db, project.ID, engineer.ID, func(d *model.Defect) {
		d.Title = "Скол плитки"
		d.Status = model.StatusClosed
		d.ClosedAt = &closedAt
	})
	other := testutil.CreateProject(t, env.db, "Другой")
	testutil.CreateDefect(t, env.db, other.ID, engineer.ID)
	return project, manager
}

// readCSV 去掉 BOM 后按 ; 解析，允许各段列数不同
func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte(utf8BOM)), "CSV 应以 UTF-8 BOM 开头")
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte(utf8BOM))))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func readSheet(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

// pad GetRows 会省略行尾空单元格
func pad(rows [][]string, width int) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return out
}

func TestReportService_CSVAndExcelMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project, _ := seedReportData(t, env)

	csvFile, err := env.svc.Report.ExportDefects(ctx, &dto.ExportDefectsRequest{Format: FormatCSV, ProjectID: project.ID})
	require.NoError(t, err)
	assert.Equal(t, csvContentType, csvFile.ContentType)
	assert.True(t, strings.HasSuffix(csvFile.FileName, ".csv"))

	xlsxFile, err := env.svc.Report.ExportDefects(ctx, &dto.ExportDefectsRequest{Format: FormatExcel, ProjectID: project.ID})
	require.NoError(t, err)
	assert.Equal(t, excelContentType, xlsxFile.ContentType)
	assert.True(t, strings.HasSuffix(xlsxFile.FileName, ".xlsx"))

	csvRows := readCSV(t, csvFile.Data.Bytes())
	excelRows := pad(readSheet(t, xlsxFile.Data.Bytes(), sheetDefects), len(defectHeader))

	require.Len(t, csvRows, 3, "表头 + 2 条缺陷")
	assert.Equal(t, defectHeader, csvRows[0])
	assert.Equal(t, csvRows, excelRows)

	// 日期以 дд.мм.гггг 输出
	byTitle := map[string][]string{}
	for _, r := range csvRows[1:] {
		byTitle[r[1]] = r
	}
	assert.Equal(t, "01.02.2026", byTitle["Отклонение колонны"][10])
	assert.Equal(t, "05.03.2026", byTitle["Скол плитки"][12])
	assert.Equal(t, "Каркас", byTitle["Отклонение колонны"][5])
}

func TestReportService_ExportDefectsStatusFilter(t *testing.T) {
	env := newTestEnv(t)
	seedReportData(t, env)

	file, err := env.svc.Report.ExportDefects(context.Background(), &dto.ExportDefectsRequest{Status: string(model.StatusClosed)})
	require.NoError(t, err)

	rows := readCSV(t, file.Data.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, string(model.StatusClosed), rows[1][6])
}

func TestReportService_ExportProjectExcelSheets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project, _ := seedReportData(t, env)

	file, err := env.svc.Report.ExportProject(ctx, project.ID, &dto.ExportProjectRequest{Format: FormatExcel})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(file.Data.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheetSummary, sheetStages, sheetDefects}, f.GetSheetList())

	// 表头加粗居中
	styleID, err := f.GetCellStyle(sheetDefects, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	require.NotNil(t, style.Alignment)
	assert.Equal(t, "center", style.Alignment.Horizontal)

	stages, err := f.GetRows(sheetStages)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Каркас", stages[1][0])
	assert.Equal(t, "1", stages[1][4])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	values := map[string]string{}
	for _, r := range summary[1:] {
		if len(r) == 2 {
			values[r[0]] = r[1]
		}
	}
	assert.Equal(t, "ЖК Южный", values["Проект"])
	assert.Equal(t, "2", values["Всего дефектов"])
	assert.Equal(t, "10.01.2026", values["Дата начала"])

	defects, err := f.GetRows(sheetDefects)
	require.NoError(t, err)
	assert.Len(t, defects, 3)
}

func TestReportService_ExportProjectCSVSections(t *testing.T) {
	env := newTestEnv(t)
	project, _ := seedReportData(t, env)

	file, err := env.svc.Report.ExportProject(context.Background(), project.ID, &dto.ExportProjectRequest{})
	require.NoError(t, err)
	assert.Equal(t, csvContentType, file.ContentType)

	rows := readCSV(t, file.Data.Bytes())
	assert.Equal(t, summaryHeader, rows[0])

	var sawStages, sawDefects bool
	for _, r := range rows {
		if len(r) == len(stageHeader) && r[0] == stageHeader[0] {
			sawStages = true
		}
		if len(r) == len(defectHeader) && r[1] == defectHeader[1] {
			sawDefects = true
		}
	}
	assert.True(t, sawStages)
	assert.True(t, sawDefects)
}

func TestReportService_ExportProjectNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Report.ExportProject(context.Background(), "00000000-0000-0000-0000-000000000000", &dto.ExportProjectRequest{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestReportService_Statistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project, _ := seedReportData(t, env)

	all, err := env.svc.Report.Statistics(ctx, &dto.StatisticsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Len(t, all.ByStatus, len(model.DefectStatuses))
	assert.Equal(t, int64(2), all.ByStatus[string(model.StatusNew)])
	assert.Equal(t, int64(1), all.ByStatus[string(model.StatusClosed)])
	assert.Equal(t, int64(0), all.ByStatus[string(model.StatusRejected)])

	scoped, err := env.svc.Report.Statistics(ctx, &dto.StatisticsRequest{ProjectID: project.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), scoped.Total)
	assert.Equal(t, int64(1), scoped.ByPriority[string(model.PriorityHigh)])
	// 截止日期 2026-02-01 已过且未关闭
	assert.Equal(t, int64(1), scoped.Overdue)
}
