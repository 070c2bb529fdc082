// Package sanitize преобразует модульный исходник сгенерированной страницы
// в исполняемый фрагмент без import/export, пригодный для вставки в
// изолированный документ предпросмотра без загрузчика модулей.
//
// Это сознательно эвристика на структурных шаблонах, а не парсер языка.
// Известные ограничения: несколько компонентов с совпадающими именами или
// код вне принятой конвенции оформления могут привязаться неверно.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	importLineRe = regexp.MustCompile(`(?m)^\s*import\b[^\n]*\n?`)

	exportDefaultFuncRe  = regexp.MustCompile(`export\s+default\s+function\s+([A-Za-z_$][\w$]*)`)
	exportDefaultIdentRe = regexp.MustCompile(`(?m)^\s*export\s+default\s+([A-Za-z_$][\w$]*)\s*;?\s*$`)
	exportFuncRe         = regexp.MustCompile(`export\s+function\s+([A-Za-z_$][\w$]*)`)
	exportConstRe        = regexp.MustCompile(`export\s+const\s+([A-Za-z_$][\w$]*)`)
	exportListRe         = regexp.MustCompile(`(?m)^\s*export\s*\{[^}]*\}\s*(?:from\s*['"][^'"]*['"])?\s*;?\s*$`)
	exportDefaultBareRe  = regexp.MustCompile(`export\s+default\s+`)

	topFuncRe  = regexp.MustCompile(`(?m)^\s*function\s+([A-Z][\w$]*)`)
	topConstRe = regexp.MustCompile(`(?m)^\s*const\s+([A-Z][\w$]*)\s*=`)

	anyFuncRe = regexp.MustCompile(`function\s+([A-Z][\w$]*)`)
)

// Result — результат санитизации.
type Result struct {
	// Code — исполняемый фрагмент без модульного синтаксиса,
	// с глобальными привязками найденных компонентов в конце.
	Code string
	// Components — имена кандидатов в компоненты в порядке обнаружения.
	Components []string
}

// Sanitize удаляет import/export из исходника страницы и привязывает
// каждое найденное компонентоподобное объявление к глобальной области
// видимости под его собственным именем.
func Sanitize(source string) Result {
	code := source
	var components []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			components = append(components, name)
		}
	}

	// Строки импорта выбрасываются целиком
	code = importLineRe.ReplaceAllString(code, "")

	// export default function Page(...) -> function Page(...)
	for _, m := range exportDefaultFuncRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	code = exportDefaultFuncRe.ReplaceAllString(code, "function $1")

	// export default Page; -> строка выбрасывается, имя запоминается
	for _, m := range exportDefaultIdentRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	code = exportDefaultIdentRe.ReplaceAllString(code, "")

	// export function Page / export const Page -> function Page / const Page
	for _, m := range exportFuncRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	code = exportFuncRe.ReplaceAllString(code, "function $1")
	for _, m := range exportConstRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	code = exportConstRe.ReplaceAllString(code, "const $1")

	// export { A, B } и реэкспорты выбрасываются
	code = exportListRe.ReplaceAllString(code, "")

	// Прочие export default (анонимные выражения) лишаются ключевых слов
	code = exportDefaultBareRe.ReplaceAllString(code, "")

	// Голые top-level объявления с заглавной буквы — тоже кандидаты
	for _, m := range topFuncRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, m := range topConstRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}

	// Запасной вариант: любое объявление функции с заглавной буквы в тексте
	if len(components) == 0 {
		for _, m := range anyFuncRe.FindAllStringSubmatch(code, -1) {
			add(m[1])
		}
	}

	if len(components) > 0 {
		var b strings.Builder
		b.WriteString(strings.TrimRight(code, "\n"))
		b.WriteString("\n\n")
		for _, name := range components {
			b.WriteString("window.")
			b.WriteString(name)
			b.WriteString(" = ")
			b.WriteString(name)
			b.WriteString(";\n")
		}
		code = b.String()
	}

	return Result{Code: code, Components: components}
}
