package preview

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pmstation-client/internal/sanitize"
)

// RuntimeConfig задает адреса UI-рантайма, встраиваемого в документ предпросмотра.
type RuntimeConfig struct {
	ReactURL    string
	ReactDOMURL string
	BabelURL    string
	TailwindURL string
}

// DefaultRuntime — рантайм по умолчанию с публичных CDN.
func DefaultRuntime() RuntimeConfig {
	return RuntimeConfig{
		ReactURL:    "https://unpkg.com/react@18/umd/react.development.js",
		ReactDOMURL: "https://unpkg.com/react-dom@18/umd/react-dom.development.js",
		BabelURL:    "https://unpkg.com/@babel/standalone/babel.min.js",
		TailwindURL: "https://cdn.tailwindcss.com",
	}
}

// Renderer собирает самодостаточные документы предпросмотра: санитизированный
// код страницы, рантайм, копия общего состояния и бутстрап, который находит
// компонент и монтирует его. Документ целиком перезагружается при каждом
// изменении кода или состояния — инкрементального патчинга между страницами нет.
type Renderer struct {
	runtime RuntimeConfig
	logger  *zap.Logger
}

// NewRenderer создает рендерер документов предпросмотра.
func NewRenderer(runtime RuntimeConfig, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{runtime: runtime, logger: logger.Named("PreviewRenderer")}
}

// Render строит документ предпросмотра для кода страницы и общего состояния.
// bridgeURL — адрес WebSocket-канала хоста для сообщений navigate/updateState
// (пустая строка — канал отключен, предпросмотр без обратной связи).
func (r *Renderer) Render(source string, sharedState map[string]interface{}, bridgeURL string) (string, error) {
	res := sanitize.Sanitize(source)
	if len(res.Components) == 0 {
		r.logger.Debug("No component candidates found in page source")
	}

	stateJSON, err := json.Marshal(sharedState)
	if err != nil {
		return "", fmt.Errorf("failed to marshal shared state: %w", err)
	}
	bridgeJSON, err := json.Marshal(bridgeURL)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bridge URL: %w", err)
	}

	// Закрывающий тег script внутри кода разорвал бы документ
	code := strings.ReplaceAll(res.Code, "</script", "<\\/script")

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <script src="` + r.runtime.TailwindURL + `"></script>
  <script src="` + r.runtime.ReactURL + `"></script>
  <script src="` + r.runtime.ReactDOMURL + `"></script>
  <script src="` + r.runtime.BabelURL + `"></script>
  <style>
    body { margin: 0; font-family: system-ui, -apple-system, sans-serif; }
    #root { min-height: 100vh; }
  </style>
</head>
<body>
  <div id="root"></div>
  <script type="text/babel">
    // Общее состояние, скопированное хостом на момент рендера
    const sharedState = ` + string(stateJSON) + `;

    // Канал сообщений к хосту
    const bridgeURL = ` + string(bridgeJSON) + `;
    let bridge = null;
    let bridgeQueue = [];
    if (bridgeURL) {
      bridge = new WebSocket(bridgeURL);
      bridge.onopen = () => {
        for (const msg of bridgeQueue) bridge.send(msg);
        bridgeQueue = [];
      };
    }
    function postToHost(payload) {
      const msg = JSON.stringify(payload);
      if (bridge && bridge.readyState === WebSocket.OPEN) {
        bridge.send(msg);
      } else if (bridge) {
        bridgeQueue.push(msg);
      }
      window.parent.postMessage(payload, '*');
    }

    function navigateTo(pageId, stateChanges = {}) {
      postToHost({ type: 'navigate', pageId, stateChanges });
    }

    function updateState(changes) {
      postToHost({ type: 'updateState', changes });
    }

    // Код страницы
    ` + code + `

    // Поиск и монтирование компонента
    try {
      const root = ReactDOM.createRoot(document.getElementById('root'));

      const globalNames = Object.keys(window).filter(key =>
        typeof window[key] === 'function' &&
        /^[A-Z]/.test(key) &&
        key !== 'React' &&
        key !== 'ReactDOM'
      );

      const possibleNames = ['App', 'Page', 'Component', ...globalNames];
      let Component = null;
      for (const name of possibleNames) {
        if (typeof window[name] === 'function') {
          Component = window[name];
          break;
        }
      }

      if (Component) {
        root.render(<Component sharedState={sharedState} navigateTo={navigateTo} updateState={updateState} />);
      } else {
        root.render(<div className="p-8 text-center text-gray-500">No component found to render</div>);
      }
    } catch (error) {
      // Ошибка монтирования остается внутри песочницы
      console.error('Render error:', error);
      document.getElementById('root').innerHTML =
        '<div class="p-8 text-center text-red-500">Error: ' + error.message + '</div>';
    }
  </script>
</body>
</html>
`)

	return b.String(), nil
}
