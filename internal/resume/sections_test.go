package resume

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/errcode"
)

func TestCreateSectionAppendsInOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)

	first, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "contact"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Order)

	second, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "experience"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Order)

	explicit, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "skills", Order: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, explicit.Order)

	next, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "projects"})
	require.NoError(t, err)
	assert.Equal(t, 11, next.Order)

	list, err := svc.ListSections(ctx, owner, cv.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Order, list[i].Order)
	}
}

func TestCreateSectionDefaultContent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)

	contact, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "contact"})
	require.NoError(t, err)
	for _, key := range []string{"name", "title", "email", "phone", "address", "linkedin", "website", "location"} {
		assert.Equal(t, "", contact.Content[key], key)
	}

	exp, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "experience", Content: json.RawMessage("null")})
	require.NoError(t, err)
	assert.Equal(t, []any{}, exp.Content["items"])

	custom, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{
		Type:    "custom",
		Content: json.RawMessage(`{"title":"Awards","list":[1,2]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Awards", custom.Content["title"])
	assert.NotContains(t, custom.Content, "text")
}

func TestCreateSectionRejectsInvalidInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)

	_, err = svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "hobbies"})
	require.ErrorIs(t, err, errcode.ErrValidation)
	details, ok := errcode.From(err).Details.(map[string]any)
	require.True(t, ok)
	assert.Len(t, details["valid_options"], 7)

	for _, raw := range []string{`[]`, `"text"`, `42`, `{broken`} {
		_, err = svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "summary", Content: json.RawMessage(raw)})
		assert.ErrorIs(t, err, errcode.ErrValidation, raw)
	}

	_, err = svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "summary", Order: intPtr(0)})
	assert.ErrorIs(t, err, errcode.ErrValidation)

	list, err := svc.ListSections(ctx, owner, cv.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// 并发追加可能产生相同的 order；这里只要求全部成功且 order 都为正。
func TestConcurrentCreateSectionMayTie(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)

	const writers = 6
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "custom"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	list, err := svc.ListSections(ctx, owner, cv.ID)
	require.NoError(t, err)
	require.Len(t, list, writers)
	for _, s := range list {
		assert.GreaterOrEqual(t, s.Order, 1)
	}
}

func TestUpdateSection(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)
	sec, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "summary"})
	require.NoError(t, err)

	got, err := svc.UpdateSection(ctx, owner, sec.ID, SectionPatch{Content: json.RawMessage(`{"text":"hello"}`)}, true)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content["text"])
	assert.Equal(t, SectionSummary, got.Type)
	assert.Equal(t, 1, got.Order)

	_, err = svc.UpdateSection(ctx, owner, sec.ID, SectionPatch{Order: intPtr(3)}, false)
	require.ErrorIs(t, err, errcode.ErrValidation)
	details := errcode.From(err).Details.(map[string]any)
	assert.Contains(t, details["fields"], "type")
	assert.Contains(t, details["fields"], "content")

	got, err = svc.UpdateSection(ctx, owner, sec.ID, SectionPatch{
		Type:    strPtr("custom"),
		Content: json.RawMessage(`{"title":"t"}`),
		Order:   intPtr(3),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, SectionCustom, got.Type)
	assert.Equal(t, 3, got.Order)

	_, err = svc.UpdateSection(ctx, owner, sec.ID, SectionPatch{Content: json.RawMessage(`null`)}, true)
	assert.ErrorIs(t, err, errcode.ErrValidation)
	_, err = svc.UpdateSection(ctx, owner, sec.ID, SectionPatch{Content: json.RawMessage(`[1]`)}, true)
	assert.ErrorIs(t, err, errcode.ErrValidation)
	_, err = svc.UpdateSection(ctx, owner, sec.ID, SectionPatch{Type: strPtr("bogus")}, true)
	assert.ErrorIs(t, err, errcode.ErrValidation)

	unchanged, err := svc.GetSection(ctx, owner, sec.ID)
	require.NoError(t, err)
	assert.Equal(t, got, unchanged)
}

func TestDeleteSection(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)
	sec, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "summary"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSection(ctx, owner, sec.ID))
	_, err = svc.GetSection(ctx, owner, sec.ID)
	assert.ErrorIs(t, err, errcode.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteSection(ctx, owner, sec.ID), errcode.ErrNotFound)
}

func TestSectionContentKeepsLargeIntegers(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, Options{})
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	cv, err := svc.CreateResume(ctx, owner, ResumeInput{Title: "cv"})
	require.NoError(t, err)

	const raw = `{"n":9007199254740993,"nested":{"ids":[18446744073709551615,1.5]}}`
	created, err := svc.CreateSection(ctx, owner, cv.ID, SectionInput{Type: "custom", Content: json.RawMessage(raw)})
	require.NoError(t, err)
	data, err := json.Marshal(created.Content)
	require.NoError(t, err)
	assert.Equal(t, raw, string(data))

	got, err := svc.GetSection(ctx, owner, created.ID)
	require.NoError(t, err)
	data, err = json.Marshal(got.Content)
	require.NoError(t, err)
	assert.Equal(t, raw, string(data))

	const updated = `{"n":9007199254740995}`
	patched, err := svc.UpdateSection(ctx, owner, created.ID, SectionPatch{Content: json.RawMessage(updated)}, true)
	require.NoError(t, err)
	data, err = json.Marshal(patched.Content)
	require.NoError(t, err)
	assert.Equal(t, updated, string(data))

	var view PublicView
	require.NoError(t, decodeJSON([]byte(`{"title":"cv","sections":[{"content":{"n":9007199254740993}}]}`), &view))
	require.Len(t, view.Sections, 1)
	data, err = json.Marshal(view.Sections[0].Content)
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(data))
}
