package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"patient-data-service/internal/domain"
	"patient-data-service/internal/usecase"
)

const testPatientID = "3f2d8a1c-5b6e-4c7d-9e0f-1a2b3c4d5e6f"

// fakeFieldCipher はテスト用のフィールド暗号化器。保護対象フィールドに
// 印を付けるだけで、実際の暗号化は行わない。
type fakeFieldCipher struct {
	encryptErr error
}

func (f *fakeFieldCipher) EncryptFields(record map[string]any, fields []string) (map[string]any, error) {
	if f.encryptErr != nil {
		return nil, f.encryptErr
	}
	sealed := make(map[string]any, len(record))
	for k, v := range record {
		sealed[k] = v
	}
	for _, field := range fields {
		if s, ok := sealed[field].(string); ok && s != "" {
			sealed[field] = "sealed:" + s
		}
	}
	return sealed, nil
}

func (f *fakeFieldCipher) DecryptFields(record map[string]any, fields []string) map[string]any {
	opened := make(map[string]any, len(record))
	for k, v := range record {
		opened[k] = v
	}
	for _, field := range fields {
		if s, ok := opened[field].(string); ok {
			opened[field] = strings.TrimPrefix(s, "sealed:")
		}
	}
	return opened
}

// mockPatientRepository はテスト用のモックリポジトリ。
type mockPatientRepository struct {
	createErr     error
	findResult    *domain.Patient
	findErr       error
	findAllResult []*domain.Patient
	findAllErr    error
	existsResult  bool
	existsErr     error
	updateErr     error
	created       []*domain.Patient
	updatedSealed string
}

func (m *mockPatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	if m.createErr != nil {
		return m.createErr
	}
	patient.ID = uuid.NewString()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()
	m.created = append(m.created, patient)
	return nil
}

func (m *mockPatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, p := range m.created {
		if p.ID == id {
			clone := *p
			return &clone, nil
		}
	}
	if m.findResult != nil {
		clone := *m.findResult
		return &clone, nil
	}
	return nil, nil
}

func (m *mockPatientRepository) FindAll(ctx context.Context) ([]*domain.Patient, error) {
	return m.findAllResult, m.findAllErr
}

func (m *mockPatientRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, p := range m.created {
		if p.ID == id {
			return true, nil
		}
	}
	return m.existsResult, nil
}

func (m *mockPatientRepository) UpdateMedicalHistory(ctx context.Context, id string, sealed string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedSealed = sealed
	return nil
}

// mockVisitRepository はテスト用のモックリポジトリ。
type mockVisitRepository struct {
	createErr     error
	findResult    *domain.Visit
	findErr       error
	findAllResult []*domain.Visit
	findAllErr    error
	created       []*domain.Visit
}

func (m *mockVisitRepository) Create(ctx context.Context, visit *domain.Visit) error {
	if m.createErr != nil {
		return m.createErr
	}
	visit.ID = uuid.NewString()
	visit.CreatedAt = time.Now()
	m.created = append(m.created, visit)
	return nil
}

func (m *mockVisitRepository) FindByID(ctx context.Context, id string) (*domain.Visit, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, v := range m.created {
		if v.ID == id {
			clone := *v
			return &clone, nil
		}
	}
	if m.findResult != nil {
		clone := *m.findResult
		return &clone, nil
	}
	return nil, nil
}

func (m *mockVisitRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Visit, error) {
	return m.findAllResult, m.findAllErr
}

// mockBillRepository はテスト用のモックリポジトリ。
type mockBillRepository struct {
	createErr     error
	findResult    *domain.Bill
	findErr       error
	findAllResult []*domain.Bill
	findAllErr    error
	created       []*domain.Bill
}

func (m *mockBillRepository) Create(ctx context.Context, bill *domain.Bill) error {
	if m.createErr != nil {
		return m.createErr
	}
	bill.ID = uuid.NewString()
	bill.CreatedAt = time.Now()
	m.created = append(m.created, bill)
	return nil
}

func (m *mockBillRepository) FindByID(ctx context.Context, id string) (*domain.Bill, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, b := range m.created {
		if b.ID == id {
			clone := *b
			return &clone, nil
		}
	}
	if m.findResult != nil {
		clone := *m.findResult
		return &clone, nil
	}
	return nil, nil
}

func (m *mockBillRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Bill, error) {
	return m.findAllResult, m.findAllErr
}

// mockReportRepository はテスト用のモックリポジトリ。
type mockReportRepository struct {
	createErr     error
	findResult    *domain.Report
	findErr       error
	findAllResult []*domain.Report
	findAllErr    error
	created       []*domain.Report
}

func (m *mockReportRepository) Create(ctx context.Context, report *domain.Report) error {
	if m.createErr != nil {
		return m.createErr
	}
	report.ID = uuid.NewString()
	report.CreatedAt = time.Now()
	m.created = append(m.created, report)
	return nil
}

func (m *mockReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.created {
		if r.ID == id {
			clone := *r
			return &clone, nil
		}
	}
	if m.findResult != nil {
		clone := *m.findResult
		return &clone, nil
	}
	return nil, nil
}

func (m *mockReportRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Report, error) {
	return m.findAllResult, m.findAllErr
}

// mockAnchorRepository はテスト用のモックリポジトリ。追記されたアンカーを
// 保持し、チェーンの末尾や最新アンカーの検索に応答する。
type mockAnchorRepository struct {
	createErr        error
	findLatestErr    error
	latestByRecErr   error
	findByPatientErr error
	findAllErr       error
	created          []*domain.RecordAnchor
}

func (m *mockAnchorRepository) Create(ctx context.Context, anchor *domain.RecordAnchor) error {
	if m.createErr != nil {
		return m.createErr
	}
	anchor.Seq = uint64(len(m.created) + 1)
	anchor.CreatedAt = time.Now()
	m.created = append(m.created, anchor)
	return nil
}

func (m *mockAnchorRepository) FindLatest(ctx context.Context) (*domain.RecordAnchor, error) {
	if m.findLatestErr != nil {
		return nil, m.findLatestErr
	}
	if len(m.created) == 0 {
		return nil, nil
	}
	return m.created[len(m.created)-1], nil
}

func (m *mockAnchorRepository) FindLatestByRecord(ctx context.Context, patientID string, kind domain.RecordKind, recordID string) (*domain.RecordAnchor, error) {
	if m.latestByRecErr != nil {
		return nil, m.latestByRecErr
	}
	for i := len(m.created) - 1; i >= 0; i-- {
		a := m.created[i]
		if a.PatientID == patientID && a.Kind == kind && a.RecordID == recordID {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockAnchorRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.RecordAnchor, error) {
	if m.findByPatientErr != nil {
		return nil, m.findByPatientErr
	}
	var anchors []*domain.RecordAnchor
	for _, a := range m.created {
		if a.PatientID == patientID {
			anchors = append(anchors, a)
		}
	}
	return anchors, nil
}

func (m *mockAnchorRepository) FindAll(ctx context.Context) ([]*domain.RecordAnchor, error) {
	if m.findAllErr != nil {
		return nil, m.findAllErr
	}
	return m.created, nil
}

// handlerMocks はハンドラテストで使うモック一式。
type handlerMocks struct {
	patients *mockPatientRepository
	visits   *mockVisitRepository
	bills    *mockBillRepository
	reports  *mockReportRepository
	anchors  *mockAnchorRepository
}

func newHandlerMocks() *handlerMocks {
	return &handlerMocks{
		patients: &mockPatientRepository{},
		visits:   &mockVisitRepository{},
		bills:    &mockBillRepository{},
		reports:  &mockReportRepository{},
		anchors:  &mockAnchorRepository{},
	}
}

func (m *handlerMocks) recordService() *usecase.RecordService {
	return usecase.NewRecordService(&fakeFieldCipher{}, m.patients, m.visits, m.bills, m.reports, m.anchors)
}

func (m *handlerMocks) recordHandler() *RecordHandler {
	return NewRecordHandler(m.recordService())
}

func (m *handlerMocks) ledgerHandler() *LedgerHandler {
	return NewLedgerHandler(usecase.NewAnchorService(m.anchors, m.recordService()))
}

func newRequest(method, target, patientID string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rctx := chi.NewRouteContext()
	if patientID != "" {
		rctx.URLParams.Add("patient_id", patientID)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreatePatient_Success(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	body := strings.NewReader(`{"name":"山田 太郎","date_of_birth":"1985-04-12","gender":"男性","blood_group":"A+","medical_history":"高血圧、2型糖尿病"}`)
	req := newRequest(http.MethodPost, "/v1/patients", "", body)
	rec := httptest.NewRecorder()
	h.CreatePatient(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	id, _ := resp["id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("want UUID id, got %q", id)
	}
	if resp["name"] != "山田 太郎" {
		t.Errorf("want name 山田 太郎, got %v", resp["name"])
	}
	if resp["date_of_birth"] != "1985-04-12" {
		t.Errorf("want date_of_birth 1985-04-12, got %v", resp["date_of_birth"])
	}
	if resp["medical_history"] != "高血圧、2型糖尿病" {
		t.Errorf("want plaintext medical_history, got %v", resp["medical_history"])
	}

	// 保存された既往歴は暗号化済みであること
	if len(m.patients.created) != 1 {
		t.Fatalf("want 1 created patient, got %d", len(m.patients.created))
	}
	if m.patients.created[0].MedicalHistory != "sealed:高血圧、2型糖尿病" {
		t.Errorf("want sealed medical history in store, got %q", m.patients.created[0].MedicalHistory)
	}
}

func TestCreatePatient_MissingName(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	body := strings.NewReader(`{"date_of_birth":"1985-04-12"}`)
	req := newRequest(http.MethodPost, "/v1/patients", "", body)
	rec := httptest.NewRecorder()
	h.CreatePatient(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestCreatePatient_InvalidDate(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	body := strings.NewReader(`{"name":"山田 太郎","date_of_birth":"12/04/1985"}`)
	req := newRequest(http.MethodPost, "/v1/patients", "", body)
	rec := httptest.NewRecorder()
	h.CreatePatient(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want status 400, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "INVALID_DATE" {
		t.Errorf("want code INVALID_DATE, got %v", resp["code"])
	}
}

func TestCreatePatient_InvalidBody(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	req := newRequest(http.MethodPost, "/v1/patients", "", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.CreatePatient(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestListPatients_OmitsMedicalHistory(t *testing.T) {
	m := newHandlerMocks()
	m.patients.findAllResult = []*domain.Patient{
		{ID: testPatientID, Name: "山田 太郎", DateOfBirth: time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC), MedicalHistory: "sealed:高血圧"},
		{ID: uuid.NewString(), Name: "鈴木 花子", DateOfBirth: time.Date(1992, 11, 3, 0, 0, 0, 0, time.UTC)},
	}
	h := m.recordHandler()

	req := newRequest(http.MethodGet, "/v1/patients", "", nil)
	rec := httptest.NewRecorder()
	h.ListPatients(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d", rec.Code)
	}

	var resp PatientListResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Patients) != 2 {
		t.Fatalf("want 2 patients, got %d", len(resp.Patients))
	}
	for _, p := range resp.Patients {
		if p.MedicalHistory != "" {
			t.Errorf("want no medical_history in list, got %q", p.MedicalHistory)
		}
	}
}

func TestGetPatient_Success(t *testing.T) {
	m := newHandlerMocks()
	m.patients.findResult = &domain.Patient{
		ID:             testPatientID,
		Name:           "山田 太郎",
		DateOfBirth:    time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC),
		MedicalHistory: "sealed:高血圧",
	}
	h := m.recordHandler()

	req := newRequest(http.MethodGet, "/v1/patients/"+testPatientID, testPatientID, nil)
	rec := httptest.NewRecorder()
	h.GetPatient(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["medical_history"] != "高血圧" {
		t.Errorf("want decrypted medical_history, got %v", resp["medical_history"])
	}
}

func TestGetPatient_InvalidID(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	req := newRequest(http.MethodGet, "/v1/patients/not-a-uuid", "not-a-uuid", nil)
	rec := httptest.NewRecorder()
	h.GetPatient(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want status 400, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "INVALID_PATIENT_ID" {
		t.Errorf("want code INVALID_PATIENT_ID, got %v", resp["code"])
	}
}

func TestGetPatient_NotFound(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	req := newRequest(http.MethodGet, "/v1/patients/"+testPatientID, testPatientID, nil)
	rec := httptest.NewRecorder()
	h.GetPatient(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("want status 404, got %d", rec.Code)
	}
}

func TestUpdateMedicalHistory_Success(t *testing.T) {
	m := newHandlerMocks()
	m.patients.findResult = &domain.Patient{
		ID:          testPatientID,
		Name:        "山田 太郎",
		DateOfBirth: time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC),
	}
	h := m.recordHandler()

	body := strings.NewReader(`{"medical_history":"高血圧、喘息"}`)
	req := newRequest(http.MethodPut, "/v1/patients/"+testPatientID+"/medical-history", testPatientID, body)
	rec := httptest.NewRecorder()
	h.UpdateMedicalHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["medical_history"] != "高血圧、喘息" {
		t.Errorf("want updated medical_history, got %v", resp["medical_history"])
	}
	if m.patients.updatedSealed != "sealed:高血圧、喘息" {
		t.Errorf("want sealed value in store, got %q", m.patients.updatedSealed)
	}
}

func TestUpdateMedicalHistory_NotFound(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	body := strings.NewReader(`{"medical_history":"高血圧"}`)
	req := newRequest(http.MethodPut, "/v1/patients/"+testPatientID+"/medical-history", testPatientID, body)
	rec := httptest.NewRecorder()
	h.UpdateMedicalHistory(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("want status 404, got %d", rec.Code)
	}
}

func TestAddVisit_Success(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"visit_date":"2024-06-01","doctor_name":"佐藤 医師","department":"内科","diagnosis":"急性気管支炎","prescriptions":"アモキシシリン 500mg"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/visits", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddVisit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["diagnosis"] != "急性気管支炎" {
		t.Errorf("want plaintext diagnosis, got %v", resp["diagnosis"])
	}

	if len(m.visits.created) != 1 {
		t.Fatalf("want 1 created visit, got %d", len(m.visits.created))
	}
	if m.visits.created[0].Diagnosis != "sealed:急性気管支炎" {
		t.Errorf("want sealed diagnosis in store, got %q", m.visits.created[0].Diagnosis)
	}
	if m.visits.created[0].Prescriptions != "sealed:アモキシシリン 500mg" {
		t.Errorf("want sealed prescriptions in store, got %q", m.visits.created[0].Prescriptions)
	}
}

func TestAddVisit_MissingDoctorName(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"visit_date":"2024-06-01"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/visits", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddVisit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestAddVisit_PatientNotFound(t *testing.T) {
	m := newHandlerMocks()
	h := m.recordHandler()

	body := strings.NewReader(`{"visit_date":"2024-06-01","doctor_name":"佐藤 医師"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/visits", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddVisit(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("want status 404, got %d", rec.Code)
	}
}

func TestListVisits_Success(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	m.visits.findAllResult = []*domain.Visit{
		{
			ID:         uuid.NewString(),
			PatientID:  testPatientID,
			VisitDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			DoctorName: "佐藤 医師",
			Diagnosis:  "sealed:急性気管支炎",
		},
	}
	h := m.recordHandler()

	req := newRequest(http.MethodGet, "/v1/patients/"+testPatientID+"/visits", testPatientID, nil)
	rec := httptest.NewRecorder()
	h.ListVisits(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d", rec.Code)
	}

	var resp VisitListResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Visits) != 1 {
		t.Fatalf("want 1 visit, got %d", len(resp.Visits))
	}
	if resp.Visits[0].Diagnosis != "急性気管支炎" {
		t.Errorf("want decrypted diagnosis, got %q", resp.Visits[0].Diagnosis)
	}
}

func TestAddBill_DefaultsToUnpaid(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"amount":12500,"description":"外来診察","details":"初診料 2,880円 / 処方箋料 680円"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/bills", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddBill(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["status"] != "unpaid" {
		t.Errorf("want status unpaid, got %v", resp["status"])
	}
	if len(m.bills.created) != 1 || m.bills.created[0].Details != "sealed:初診料 2,880円 / 処方箋料 680円" {
		t.Errorf("want sealed details in store")
	}
}

func TestAddBill_InvalidAmount(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"amount":0,"description":"外来診察"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/bills", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddBill(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestAddBill_InvalidStatus(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"amount":12500,"status":"overdue"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/bills", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddBill(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestAddReport_DefaultsToPending(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"report_type":"血液検査","report_date":"2024-06-02","ordered_by":"佐藤 医師","summary":"異常なし","findings":"白血球数 正常範囲内"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/reports", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddReport(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["status"] != "pending" {
		t.Errorf("want status pending, got %v", resp["status"])
	}
	if len(m.reports.created) != 1 || m.reports.created[0].Summary != "sealed:異常なし" {
		t.Errorf("want sealed summary in store")
	}
}

func TestAddReport_MissingType(t *testing.T) {
	m := newHandlerMocks()
	m.patients.existsResult = true
	h := m.recordHandler()

	body := strings.NewReader(`{"report_date":"2024-06-02"}`)
	req := newRequest(http.MethodPost, "/v1/patients/"+testPatientID+"/reports", testPatientID, body)
	rec := httptest.NewRecorder()
	h.AddReport(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}
