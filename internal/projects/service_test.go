package projects

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"veriflow-backend/internal/auth"
	"veriflow-backend/internal/evidence"
	"veriflow-backend/internal/identity"
	"veriflow-backend/internal/models"
	"veriflow-backend/internal/pkg/apperrors"
	"veriflow-backend/internal/pkg/constants"
	"veriflow-backend/internal/verification"
)

func setupProjectsTest(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One shared connection so every session sees the same :memory: DB.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Project{}))

	svc := &Service{
		DB:        db,
		Processor: &evidence.Processor{Root: t.TempDir()},
		Identity:  &identity.Service{DB: db},
	}
	return svc, db
}

func createTestUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        name + "@test.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func principal(u *models.User) *auth.Principal {
	return &auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestCreate_Defaults(t *testing.T) {
	svc, db := setupProjectsTest(t)
	farmer := createTestUser(t, db, "u1", constants.RoleFarmer)

	area := 2.5
	p, err := svc.Create(context.Background(), principal(farmer), CreateInput{
		Title:        "Mangrove Plot A",
		AreaHectares: &area,
		CropType:     "mangrove",
	})
	require.NoError(t, err)

	assert.Equal(t, "draft", p.Status)
	assert.Equal(t, farmer.ID, p.Owner)
	assert.Equal(t, "mangrove", p.CropType)
	assert.Equal(t, float64(0), p.IssuedCredits)
	assert.Equal(t, float64(0), p.EstimatedCredits)
	assert.Len(t, p.Images, 0)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestCreate_TitleRequired(t *testing.T) {
	svc, db := setupProjectsTest(t)
	farmer := createTestUser(t, db, "u1", constants.RoleFarmer)

	_, err := svc.Create(context.Background(), principal(farmer), CreateInput{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestCreate_UnrecognizedCropTypeDefaultsToOther(t *testing.T) {
	svc, db := setupProjectsTest(t)
	farmer := createTestUser(t, db, "u1", constants.RoleFarmer)

	p, err := svc.Create(context.Background(), principal(farmer), CreateInput{
		Title:    "Plot",
		CropType: "kelp forest",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CropOther, p.CropType)
}

func TestCreate_NegativeAreaRejected(t *testing.T) {
	svc, db := setupProjectsTest(t)
	farmer := createTestUser(t, db, "u1", constants.RoleFarmer)

	area := -1.0
	_, err := svc.Create(context.Background(), principal(farmer), CreateInput{Title: "Plot", AreaHectares: &area})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestCreate_OwnerOverrideRequiresAdmin(t *testing.T) {
	svc, db := setupProjectsTest(t)
	farmer := createTestUser(t, db, "u1", constants.RoleFarmer)
	other := createTestUser(t, db, "u2", constants.RoleFarmer)
	admin := createTestUser(t, db, "boss", constants.RoleAdmin)

	_, err := svc.Create(context.Background(), principal(farmer), CreateInput{
		Title: "Plot",
		Owner: other.ID.String(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	p, err := svc.Create(context.Background(), principal(admin), CreateInput{
		Title: "Plot",
		Owner: other.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, p.Owner)
}

func TestGetByID_RoundTripAndOwnerResolution(t *testing.T) {
	svc, db := setupProjectsTest(t)
	farmer := createTestUser(t, db, "u1", constants.RoleFarmer)

	area := 2.5
	created, err := svc.Create(context.Background(), principal(farmer), CreateInput{
		Title:        "Mangrove Plot A",
		Description:  "Delta restoration",
		AreaHectares: &area,
		CropType:     "mangrove",
		Metadata:     map[string]interface{}{"species": "Rhizophora"},
	})
	require.NoError(t, err)

	view, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mangrove Plot A", view.Title)
	assert.Equal(t, "Delta restoration", view.Description)
	assert.Equal(t, "mangrove", view.CropType)
	require.NotNil(t, view.AreaHectares)
	assert.Equal(t, 2.5, *view.AreaHectares)
	assert.Equal(t, "draft", view.Status)
	assert.Equal(t, "Rhizophora", view.Metadata["species"])

	require.NotNil(t, view.Owner)
	assert.Equal(t, farmer.ID, view.Owner.ID)
	assert.Equal(t, "u1", view.Owner.Name)
	assert.Equal(t, "u1@test.com", view.Owner.Email)
	assert.Equal(t, constants.RoleFarmer, view.Owner.Role)
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := setupProjectsTest(t)

	_, err := svc.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestList_FiltersAndCount(t *testing.T) {
	svc, db := setupProjectsTest(t)
	u1 := createTestUser(t, db, "u1", constants.RoleFarmer)
	u2 := createTestUser(t, db, "u2", constants.RoleFarmer)

	ctx := context.Background()
	_, err := svc.Create(ctx, principal(u1), CreateInput{Title: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal(u1), CreateInput{Title: "B"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal(u2), CreateInput{Title: "C"})
	require.NoError(t, err)

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := svc.List(ctx, Filter{Owner: &u1.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, v := range mine {
		assert.Equal(t, u1.ID, v.Project.Owner)
		require.NotNil(t, v.Owner)
		assert.Equal(t, "u1", v.Owner.Name)
	}

	drafts, err := svc.List(ctx, Filter{Status: "draft"})
	require.NoError(t, err)
	assert.Len(t, drafts, 3)

	none, err := svc.List(ctx, Filter{Status: "approved"})
	require.NoError(t, err)
	assert.Len(t, none, 0)
}

func TestDelete_Authorization(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)
	stranger := createTestUser(t, db, "u2", constants.RoleFarmer)
	admin := createTestUser(t, db, "boss", constants.RoleAdmin)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	err = svc.Delete(ctx, principal(stranger), p.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	require.NoError(t, svc.Delete(ctx, principal(owner), p.ID))
	_, err = svc.GetByID(ctx, p.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	// Admin may delete someone else's project (reject path).
	p2, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot 2"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, principal(admin), p2.ID))

	err = svc.Delete(ctx, principal(admin), uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestUpdate_OwnerImmutable(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	title := "Renamed"
	notes := "soil sampled"
	updated, err := svc.Update(ctx, principal(owner), p.ID, UpdateInput{Title: &title, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "soil sampled", updated.Notes)
	assert.Equal(t, owner.ID, updated.Owner)
}

func TestUpdate_AdminApproveStampsVerification(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)
	admin := createTestUser(t, db, "boss", constants.RoleAdmin)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	status := "approved"
	updated, err := svc.Update(ctx, principal(admin), p.ID, UpdateInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, string(verification.StatusApproved), updated.Status)

	v := updated.VerificationInfo.Data()
	assert.True(t, v.Verified)
	require.NotNil(t, v.VerifiedBy)
	assert.Equal(t, admin.ID, *v.VerifiedBy)
	require.NotNil(t, v.VerifiedAt)

	// Terminal: even an admin cannot move it again.
	draft := "draft"
	_, err = svc.Update(ctx, principal(admin), p.ID, UpdateInput{Status: &draft})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestUpdate_NonAdminCannotApprove(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	status := "approved"
	_, err = svc.Update(ctx, principal(owner), p.ID, UpdateInput{Status: &status})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	// Owner may still submit.
	submitted := "submitted"
	updated, err := svc.Update(ctx, principal(owner), p.ID, UpdateInput{Status: &submitted})
	require.NoError(t, err)
	assert.Equal(t, "submitted", updated.Status)
}

func TestAppendEvidence_Authorization(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)
	stranger := createTestUser(t, db, "u2", constants.RoleFarmer)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	data := jpegBytes(t, 64, 64)
	upload := &evidence.Upload{Filename: "a.jpg", MimeType: "image/jpeg", Size: int64(len(data)), Data: data}

	_, err = svc.AppendEvidence(ctx, principal(stranger), p.ID, upload, evidence.Fields{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	img, err := svc.AppendEvidence(ctx, principal(owner), p.ID, upload, evidence.Fields{})
	require.NoError(t, err)
	require.NotNil(t, img.Width)
	assert.Equal(t, 64, *img.Width)
	require.NotNil(t, img.ThumbnailURL)

	view, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Images, 1)
	assert.Equal(t, img.ID, view.Images[0].ID)
}

func TestAppendEvidence_InvalidCoordinateDoesNotFailUpload(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	data := jpegBytes(t, 32, 32)
	img, err := svc.AppendEvidence(ctx, principal(owner), p.ID,
		&evidence.Upload{Filename: "a.jpg", Size: int64(len(data)), Data: data},
		evidence.Fields{Latitude: "not-a-number"})
	require.NoError(t, err)
	assert.Nil(t, img.Latitude)
}

func TestAppendEvidence_ProcessingFailureLeavesProjectUntouched(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	_, err = svc.AppendEvidence(ctx, principal(owner), p.ID,
		&evidence.Upload{Filename: "bad.jpg", Size: 3, Data: []byte("bad")}, evidence.Fields{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProcessing))

	view, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, view.Images, 0)
}

func TestAppendEvidence_ConcurrentUploadsAllSurvive(t *testing.T) {
	svc, db := setupProjectsTest(t)
	owner := createTestUser(t, db, "u1", constants.RoleFarmer)

	ctx := context.Background()
	p, err := svc.Create(ctx, principal(owner), CreateInput{Title: "Plot"})
	require.NoError(t, err)

	const n = 8
	data := jpegBytes(t, 48, 48)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AppendEvidence(ctx, principal(owner), p.ID,
				&evidence.Upload{Filename: "a.jpg", Size: int64(len(data)), Data: data},
				evidence.Fields{})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "upload %d", i)
	}

	view, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Images, n)

	ids := make(map[uuid.UUID]bool, n)
	for _, img := range view.Images {
		assert.False(t, ids[img.ID])
		ids[img.ID] = true
	}
}
