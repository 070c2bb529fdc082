package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmstation-client/internal/domain"
)

func TestNormalize_Canonical(t *testing.T) {
	raw := []byte(`{
		"project_name": "Shop",
		"platforms": [{
			"type": "pc",
			"subtype": "web",
			"pages": [
				{"id": "home", "name": "Home", "path": "/", "code": "function Home() {}", "order": 0, "status": "completed", "transitions": []}
			],
			"navigation": {"type": "sidebar", "items": ["home"]}
		}],
		"shared_state": {"cart": 0}
	}`)

	project, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "Shop", project.ProjectName)
	require.Len(t, project.Platforms, 1)
	assert.Equal(t, domain.PlatformPC, project.Platforms[0].Type)
	assert.Equal(t, "sidebar", project.Platforms[0].Navigation.Type)
	assert.EqualValues(t, 0, project.SharedState["cart"])
}

func TestNormalize_Plain(t *testing.T) {
	raw := []byte(`{
		"project_name": "Shop",
		"platforms": [
			{"type": "pc", "pages": [
				{"id": "home", "name": "Home Page", "description": "Landing", "code": "function Home() {}"},
				{"name": "Catalog", "code": "function Catalog() {}"}
			]},
			{"type": "mobile", "pages": [
				{"id": "m-home", "name": "Home", "code": "function MHome() {}"}
			]}
		]
	}`)

	project, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, project.Platforms, 2)

	pc := project.Platforms[0]
	require.Len(t, pc.Pages, 2)
	assert.Equal(t, "home", pc.Pages[0].ID)
	assert.Equal(t, "/home-page", pc.Pages[0].Path)
	assert.Equal(t, 0, pc.Pages[0].Order)
	assert.Equal(t, domain.PageStatusCompleted, pc.Pages[0].Status)
	// Страница без id получает синтетический идентификатор по индексу
	assert.Equal(t, "page_1", pc.Pages[1].ID)
	assert.Equal(t, "sidebar", pc.Navigation.Type)
	assert.Equal(t, []string{"home", "page_1"}, pc.Navigation.Items)

	mobile := project.Platforms[1]
	assert.Equal(t, "bottom", mobile.Navigation.Type)

	assert.Equal(t, 3, project.GenerationMetadata.TotalPages)
	assert.NotNil(t, project.SharedState)
}

func TestNormalize_Legacy(t *testing.T) {
	raw := []byte(`{
		"project_name": "Shop",
		"files": [
			{"filename": "src/App.tsx", "code": "function App() {}", "description": ""},
			{"filename": "src/pages/Catalog.tsx", "code": "function Catalog() {}", "description": "Catalog with a very long description exceeding thirty characters"},
			{"filename": "README.md", "code": "", "description": ""}
		]
	}`)

	project, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, project.Platforms, 1)

	platform := project.Platforms[0]
	assert.Equal(t, domain.PlatformPC, platform.Type)
	require.Len(t, platform.Pages, 3)

	// Имя компонента из имени файла, App получает корневой путь
	assert.Equal(t, "App", platform.Pages[0].Name)
	assert.Equal(t, "/", platform.Pages[0].Path)

	// Путь из каталога pages/, длинное описание усечено
	assert.Equal(t, "/catalog", platform.Pages[1].Path)
	assert.True(t, strings.HasSuffix(platform.Pages[1].Name, "..."))
	assert.LessOrEqual(t, len([]rune(platform.Pages[1].Name)), 33)

	// Файл без распознаваемого расширения получает синтетическое имя
	assert.Equal(t, "Page3", platform.Pages[2].Name)

	assert.Equal(t, []string{"page_0", "page_1", "page_2"}, platform.Navigation.Items)
}

func TestNormalize_InvalidPayload(t *testing.T) {
	_, err := Normalize([]byte(`not json`))
	assert.Error(t, err)
}

func TestNormalize_AllFormatsShareCanonicalShape(t *testing.T) {
	// Одна и та же страница в трех форматах должна давать эквивалентную
	// каноническую структуру: id, завершенный статус и навигацию.
	canonical := []byte(`{"project_name":"P","platforms":[{"type":"pc","subtype":"full","pages":[{"id":"page_0","name":"Home","path":"/home","code":"function Home() {}","order":0,"status":"completed","transitions":[]}],"navigation":{"type":"sidebar","items":["page_0"]}}],"shared_state":{}}`)
	plain := []byte(`{"project_name":"P","platforms":[{"type":"pc","pages":[{"name":"Home","code":"function Home() {}"}]}]}`)
	legacy := []byte(`{"project_name":"P","files":[{"filename":"pages/Home.tsx","code":"function Home() {}","description":""}]}`)

	for name, raw := range map[string][]byte{"canonical": canonical, "plain": plain, "legacy": legacy} {
		t.Run(name, func(t *testing.T) {
			project, err := Normalize(raw)
			require.NoError(t, err)
			require.Len(t, project.Platforms, 1)
			require.Len(t, project.Platforms[0].Pages, 1)

			page := project.Platforms[0].Pages[0]
			assert.Equal(t, "page_0", page.ID)
			assert.Equal(t, "function Home() {}", page.Code)
			assert.Equal(t, domain.PageStatusCompleted, page.Status)
			assert.Equal(t, []string{"page_0"}, project.Platforms[0].Navigation.Items)
			assert.NotNil(t, project.SharedState)
		})
	}
}
