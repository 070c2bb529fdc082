package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pmstation-client/internal/domain"
)

// Исторически бэкенд отдавал демо-проект в трех форматах. Normalize — единственная
// граница, где форматы различаются; все остальные компоненты видят только
// канонический domain.DemoProject.

// legacyDemoFile — элемент устаревшего формата со списком файлов.
type legacyDemoFile struct {
	Filename    string `json:"filename"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

type legacyDemoProject struct {
	ProjectName string           `json:"project_name"`
	Files       []legacyDemoFile `json:"files"`
}

// plainPage — страница промежуточного формата (платформы без навигации).
type plainPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

type plainPlatform struct {
	Type  domain.PlatformType `json:"type"`
	Pages []plainPage         `json:"pages"`
}

type plainProject struct {
	ProjectName string                 `json:"project_name"`
	Platforms   []plainPlatform        `json:"platforms"`
	SharedState map[string]interface{} `json:"shared_state"`
}

// probe используется только для структурного определения формата.
type probe struct {
	Files     []json.RawMessage `json:"files"`
	Platforms []struct {
		Pages      []json.RawMessage `json:"pages"`
		Navigation json.RawMessage   `json:"navigation"`
	} `json:"platforms"`
}

var componentFileRe = regexp.MustCompile(`([^/]+)\.(tsx|ts|jsx|js)$`)
var componentDirRe = regexp.MustCompile(`(?:pages|components)/([^.]+)`)

// Normalize определяет wire-формат демо-проекта структурным зондированием
// и детерминированно приводит его к каноническому виду. Неопознанные формы
// считаются уже каноническими и проходят без преобразования.
func Normalize(raw []byte) (*domain.DemoProject, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid demo project payload: %w", err)
	}

	switch {
	case len(p.Files) > 0 && len(p.Platforms) == 0:
		var legacy legacyDemoProject
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("invalid legacy demo payload: %w", err)
		}
		return convertLegacy(legacy), nil

	case len(p.Platforms) > 0 && len(p.Platforms[0].Pages) > 0 && len(p.Platforms[0].Navigation) == 0:
		var plain plainProject
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("invalid plain demo payload: %w", err)
		}
		return convertPlain(plain), nil

	default:
		var project domain.DemoProject
		if err := json.Unmarshal(raw, &project); err != nil {
			return nil, fmt.Errorf("invalid canonical demo payload: %w", err)
		}
		if project.SharedState == nil {
			project.SharedState = make(map[string]interface{})
		}
		return &project, nil
	}
}

// convertPlain приводит формат "платформы без навигации" к каноническому.
func convertPlain(plain plainProject) *domain.DemoProject {
	platforms := make([]domain.DemoPlatform, 0, len(plain.Platforms))
	total := 0

	for _, src := range plain.Platforms {
		pages := make([]domain.DemoPage, 0, len(src.Pages))
		items := make([]string, 0, len(src.Pages))
		for i, p := range src.Pages {
			id := p.ID
			if id == "" {
				id = fmt.Sprintf("page_%d", i)
			}
			pages = append(pages, domain.DemoPage{
				ID:          id,
				Name:        p.Name,
				Path:        "/" + strings.ReplaceAll(strings.ToLower(p.Name), " ", "-"),
				Description: p.Description,
				Code:        p.Code,
				Order:       i,
				Status:      domain.PageStatusCompleted,
				Transitions: []domain.PageTransition{},
			})
			items = append(items, id)
		}

		navType := "sidebar"
		if src.Type == domain.PlatformMobile {
			navType = "bottom"
		}
		platforms = append(platforms, domain.DemoPlatform{
			Type:       src.Type,
			Subtype:    "full",
			Pages:      pages,
			Navigation: domain.PlatformNavigation{Type: navType, Items: items},
		})
		total += len(pages)
	}

	shared := plain.SharedState
	if shared == nil {
		shared = make(map[string]interface{})
	}

	return &domain.DemoProject{
		ProjectName: plain.ProjectName,
		Platforms:   platforms,
		SharedState: shared,
		GenerationMetadata: domain.GenerationMetadata{
			TotalPages:  total,
			GeneratedAt: time.Now().UTC(),
		},
	}
}

// convertLegacy приводит устаревший формат со списком файлов к каноническому:
// все файлы становятся страницами одной PC-платформы.
func convertLegacy(legacy legacyDemoProject) *domain.DemoProject {
	pages := make([]domain.DemoPage, 0, len(legacy.Files))
	items := make([]string, 0, len(legacy.Files))

	for i, file := range legacy.Files {
		componentName := fmt.Sprintf("Page%d", i+1)
		if m := componentFileRe.FindStringSubmatch(file.Filename); m != nil {
			componentName = m[1]
		}

		displayName := file.Description
		if displayName == "" {
			displayName = componentName
		}
		if runes := []rune(displayName); len(runes) > 30 {
			displayName = string(runes[:30]) + "..."
		}

		path := "/"
		if m := componentDirRe.FindStringSubmatch(file.Filename); m != nil {
			path = "/" + strings.ToLower(m[1])
		} else if strings.ToLower(componentName) != "app" {
			path = "/" + strings.ToLower(componentName)
		}

		id := fmt.Sprintf("page_%d", i)
		pages = append(pages, domain.DemoPage{
			ID:          id,
			Name:        displayName,
			Path:        path,
			Description: file.Description,
			Code:        file.Code,
			Order:       i,
			Status:      domain.PageStatusCompleted,
			Transitions: []domain.PageTransition{},
		})
		items = append(items, id)
	}

	return &domain.DemoProject{
		ProjectName: legacy.ProjectName,
		Platforms: []domain.DemoPlatform{{
			Type:       domain.PlatformPC,
			Subtype:    "full",
			Pages:      pages,
			Navigation: domain.PlatformNavigation{Type: "sidebar", Items: items},
		}},
		SharedState: make(map[string]interface{}),
		GenerationMetadata: domain.GenerationMetadata{
			TotalPages:  len(pages),
			GeneratedAt: time.Now().UTC(),
		},
	}
}
