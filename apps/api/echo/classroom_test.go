package echoapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/user"
	"github.com/trezcool/quizroom/tests"
)

func Test_classroomApi_create(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, app.usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, true)
	body := marshallObj(t, classroom.NewClassroom{Name: " Algebra ", Section: "A", Subject: "Maths", Room: "12"})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodPost,
			path:     "/v1/classrooms",
			body:     body,
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "student",
			method:   http.MethodPost,
			path:     "/v1/classrooms",
			body:     body,
			token:    getToken(t, app, student),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/classrooms",
			body:     []byte(`{"name": "Algebra"}`),
			token:    getToken(t, app, teacher),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"section": "this field is required",
				"subject": "this field is required",
				"room":    "this field is required",
			}),
		},
	})

	rec := app.do(http.MethodPost, "/v1/classrooms", getToken(t, app, teacher), body)
	if assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
		var c classroom.Classroom
		unmarshall(t, rec.Body, &c)
		assert.Equal(t, "Algebra", c.Name)
		assert.Equal(t, teacher.ID, c.TeacherID)
		assert.Len(t, c.Code, classroom.CodeLength)
	}
}

func Test_classroomApi_queryAndRetrieve(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, app.usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, true)
	outsider := testutil.CreateUser(t, app.usrRepo, "Outsider", "outsider", "outsider@test.cd", "", user.RoleStudent, true)

	biology := testutil.CreateClassroom(t, app.classroomRepo, teacher, "Biology", "BIO1234")
	algebra := testutil.CreateClassroom(t, app.classroomRepo, teacher, "Algebra", "ALG1234")
	testutil.CreateClassroom(t, app.classroomRepo, other, "Chemistry", "CHE1234")
	testutil.Enroll(t, app.classroomRepo, algebra, student)

	names := func(rec *httptest.ResponseRecorder) []string {
		var list []classroom.Classroom
		unmarshall(t, rec.Body, &list)
		res := make([]string, 0, len(list))
		for _, c := range list {
			res = append(res, c.Name)
		}
		return res
	}

	t.Run("teacher sees owned classrooms", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/classrooms?ordering=name", getToken(t, app, teacher))
		if assert.Equal(t, http.StatusOK, rec.Code) {
			assert.Equal(t, []string{"Algebra", "Biology"}, names(rec))
		}
		rec = app.do(http.MethodGet, "/v1/classrooms?ordering=-name", getToken(t, app, teacher))
		assert.Equal(t, []string{"Biology", "Algebra"}, names(rec))
	})

	t.Run("student sees enrolled classrooms", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/classrooms", getToken(t, app, student))
		if assert.Equal(t, http.StatusOK, rec.Code) {
			assert.Equal(t, []string{"Algebra"}, names(rec))
		}
	})

	t.Run("retrieve with roster", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/classrooms/"+algebra.ID, getToken(t, app, student))
		if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			var c classroom.Classroom
			unmarshall(t, rec.Body, &c)
			assert.Equal(t, 1, c.StudentCount)
			if assert.Len(t, c.Students, 1) {
				assert.Equal(t, student.ID, c.Students[0].ID)
			}
			if assert.NotNil(t, c.Teacher) {
				assert.Equal(t, teacher.ID, c.Teacher.ID)
			}
		}
	})

	errNotFound := marshallObj(t, httpErr{Error: classroom.ErrNotFound.Error()})
	runHTTPTests(t, app, []httpTest{
		{
			name:     "not enrolled",
			method:   http.MethodGet,
			path:     "/v1/classrooms/" + algebra.ID,
			token:    getToken(t, app, outsider),
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
		{
			name:     "other teacher",
			method:   http.MethodGet,
			path:     "/v1/classrooms/" + biology.ID,
			token:    getToken(t, app, other),
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
		{
			name:     "other teacher update",
			method:   http.MethodPut,
			path:     "/v1/classrooms/" + biology.ID,
			body:     []byte(`{"name": "Hacked"}`),
			token:    getToken(t, app, other),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: core.ErrPermissionDenied.Error()}),
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/v1/classrooms/unknown",
			token:    getToken(t, app, teacher),
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
	})

	t.Run("update keeps blank fields", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/classrooms/"+biology.ID, getToken(t, app, teacher), []byte(`{"name": "Botany"}`))
		if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			var c classroom.Classroom
			unmarshall(t, rec.Body, &c)
			assert.Equal(t, "Botany", c.Name)
			assert.Equal(t, biology.Subject, c.Subject)
			assert.Equal(t, biology.Code, c.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, "/v1/classrooms/"+biology.ID, getToken(t, app, teacher)).Code)
		assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/v1/classrooms/"+biology.ID, getToken(t, app, teacher)).Code)
	})
}

func Test_classroomApi_join(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, app.usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, true)
	c := testutil.CreateClassroom(t, app.classroomRepo, teacher, "Algebra", "ALG1234")
	token := getToken(t, app, student)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "teacher cannot join",
			method:   http.MethodPost,
			path:     "/v1/classrooms/join",
			body:     []byte(`{"class_code": "ALG1234"}`),
			token:    getToken(t, app, teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "code too short",
			method:   http.MethodPost,
			path:     "/v1/classrooms/join",
			body:     []byte(`{"class_code": "AB"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown code",
			method:   http.MethodPost,
			path:     "/v1/classrooms/join",
			body:     []byte(`{"class_code": "ZZZ9999"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"class_code": "invalid class code"}),
		},
	})

	rec := app.do(http.MethodPost, "/v1/classrooms/join", token, []byte(`{"class_code": " ALG1234 "}`))
	if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		var res EnrollmentResponse
		unmarshall(t, rec.Body, &res)
		assert.False(t, res.AlreadyEnrolled)
		if assert.NotNil(t, res.Classroom) {
			assert.Equal(t, c.ID, res.Classroom.ID)
			assert.Equal(t, 1, res.Classroom.StudentCount)
		}
		assert.Len(t, app.events.Events(core.EventClassroomJoined), 1)
	}

	rec = app.do(http.MethodPost, "/v1/classrooms/join", token, []byte(`{"class_code": "ALG1234"}`))
	if assert.Equal(t, http.StatusOK, rec.Code) {
		var res EnrollmentResponse
		unmarshall(t, rec.Body, &res)
		assert.True(t, res.AlreadyEnrolled)
		assert.NotEmpty(t, res.Warning)
	}

	t.Run("leave", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, app.do(http.MethodPost, "/v1/classrooms/"+c.ID+"/leave", token).Code)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: classroom.ErrNotEnrolled.Error()}),
		}, app.do(http.MethodPost, "/v1/classrooms/"+c.ID+"/leave", token))
		assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/v1/classrooms/"+c.ID+"/leave", getToken(t, app, teacher)).Code)
	})
}

func Test_classroomApi_students(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	jane := testutil.CreateUser(t, app.usrRepo, "Jane", "jane", "jane@test.cd", "", user.RoleStudent, true)
	john := testutil.CreateUser(t, app.usrRepo, "John", "john", "john@test.cd", "", user.RoleStudent, true)
	c := testutil.CreateClassroom(t, app.classroomRepo, teacher, "Algebra", "ALG1234")
	token := getToken(t, app, teacher)
	path := "/v1/classrooms/" + c.ID + "/students"

	runHTTPTests(t, app, []httpTest{
		{
			name:     "add unknown",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"email_or_username": "nobody"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email_or_username": classroom.ErrStudentNotFound.Error()}),
		},
		{
			name:     "add a teacher",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"email_or_username": "teacher"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email_or_username": classroom.ErrNotAStudent.Error()}),
		},
		{
			name:     "bulk with unknown id",
			method:   http.MethodPost,
			path:     path + "/bulk",
			body:     marshallObj(t, classroom.AddStudents{StudentIDs: []string{"unknown"}}),
			token:    token,
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("add by email notifies the student", func(t *testing.T) {
		app.mailSvc.Reset()
		rec := app.do(http.MethodPost, path, token, []byte(`{"email_or_username": "JANE@test.cd"}`))
		if assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			if sent := app.mailSvc.SentMessages(); assert.Len(t, sent, 1) {
				assert.Equal(t, jane.Email, sent[0].To[0].Address)
				assert.Contains(t, sent[0].TextContent, "Algebra")
			}
		}

		rec = app.do(http.MethodPost, path, token, []byte(`{"email_or_username": "jane"}`))
		if assert.Equal(t, http.StatusOK, rec.Code) {
			var res EnrollmentResponse
			unmarshall(t, rec.Body, &res)
			assert.True(t, res.AlreadyEnrolled)
		}
	})

	t.Run("bulk", func(t *testing.T) {
		rec := app.do(http.MethodPost, path+"/bulk", token, marshallObj(t, classroom.AddStudents{StudentIDs: []string{jane.ID, john.ID, john.ID}}))
		if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			var res classroom.EnrollmentResult
			unmarshall(t, rec.Body, &res)
			if assert.Len(t, res.Added, 1) {
				assert.Equal(t, john.ID, res.Added[0].ID)
			}
			if assert.Len(t, res.AlreadyEnrolled, 1) {
				assert.Equal(t, jane.ID, res.AlreadyEnrolled[0].ID)
			}
		}
	})

	t.Run("remove", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, app.do(http.MethodDelete, path+"/"+john.ID, token).Code)
		assert.Equal(t, http.StatusBadRequest, app.do(http.MethodDelete, path+"/"+john.ID, token).Code)
	})
}

func newRosterRequest(t *testing.T, path, token string, entries ...string) (*http.Request, *httptest.ResponseRecorder) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Email or username")
	for i, entry := range entries {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetCellValue(sheet, cell, entry)
	}
	content, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("newRosterRequest(): %v", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(rosterFormField, "roster.xlsx")
	if err != nil {
		t.Fatalf("newRosterRequest(): %v", err)
	}
	_, _ = part.Write(content.Bytes())
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_classroomApi_importRoster(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	jane := testutil.CreateUser(t, app.usrRepo, "Jane", "jane", "jane@test.cd", "", user.RoleStudent, true)
	john := testutil.CreateUser(t, app.usrRepo, "John", "john", "john@test.cd", "", user.RoleStudent, true)
	c := testutil.CreateClassroom(t, app.classroomRepo, teacher, "Algebra", "ALG1234")
	testutil.Enroll(t, app.classroomRepo, c, john)

	req, rec := newRosterRequest(t, "/v1/classrooms/"+c.ID+"/students/import", getToken(t, app, teacher),
		"JANE@test.cd", "john", "nobody", "teacher")
	app.ServeHTTP(rec, req)

	if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
		var res RosterImportResult
		unmarshall(t, rec.Body, &res)
		if assert.Len(t, res.Added, 1) {
			assert.Equal(t, jane.ID, res.Added[0].ID)
		}
		if assert.Len(t, res.AlreadyEnrolled, 1) {
			assert.Equal(t, john.ID, res.AlreadyEnrolled[0].ID)
		}
		assert.Equal(t, []string{"nobody", "teacher"}, res.Skipped)
	}

	t.Run("missing file", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/classrooms/"+c.ID+"/students/import", getToken(t, app, teacher))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_classroomApi_importRosterTooLarge(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	c := testutil.CreateClassroom(t, app.classroomRepo, teacher, "Algebra", "ALG1234")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(rosterFormField, "roster.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(bytes.Repeat([]byte("x"), 3<<20))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/classrooms/"+c.ID+"/students/import", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+getToken(t, app, teacher))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
