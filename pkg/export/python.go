package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

var pythonTemplate = template.Must(template.New("python").Funcs(template.FuncMap{
	"quote":   strconv.Quote,
	"number":  formatNumber,
	"comment": commentText,
}).Parse(`import os
from typing import List
import google.generativeai as genai

# Configure API
genai.configure(api_key=os.environ["API_KEY"])

# --- RAG Pipeline Configuration (Generated) ---

class RAGPipeline:
    def __init__(self):
        self.steps = []
        print("Initializing Pipeline...")
{{- range .}}

        # Step: {{comment .Label}}
        # Type: {{.Kind}}
        # Model: {{comment .Model}}
        self.steps.append({
            "name": {{quote .Label}},
            "model": {{quote .Model}},
            "latency_budget": {{number .BaseLatencyMs}}
        })
{{- end}}

    def run(self, query: str):
        print(f"Processing Query: {query}")
        context = None

        for step in self.steps:
            print(f"  --> Running {step['name']} using {step['model']}...")
            # Simulate processing latency
            # time.sleep(step['latency_budget'] / 1000)

        return "Pipeline Execution Complete"

if __name__ == "__main__":
    rag = RAGPipeline()
    rag.run("How do I implement Late Chunking?")
`))

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// commentText keeps a value on a single Python comment line
func commentText(s string) string {
	return lineBreaks.Replace(s)
}

// Python renders a runnable Python scaffold with one step per active node, in node order
func Python(nodes []model.Node) (string, error) {
	active := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Active {
			active = append(active, n)
		}
	}

	var buf bytes.Buffer
	if err := pythonTemplate.Execute(&buf, active); err != nil {
		return "", fmt.Errorf("failed to render python scaffold: %w", err)
	}
	return buf.String(), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
