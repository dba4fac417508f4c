package model

// DefaultGraph returns the built-in starter pipeline:
// PII Detection -> Adaptive Router -> Late Chunking -> Hybrid Retrieval ->
// Knowledge Graph -> Custom Reranker -> Synthesis Core -> Hallucination Check.
func DefaultGraph() *Graph {
	nodes := []Node{
		{ID: "n0", Kind: KindGuardrail, Label: "PII Detection", Model: "Presidio", Active: true, BaseLatencyMs: 30, BaseCostPerMillion: 0.02},
		{ID: "n7", Kind: KindRouting, Label: "Adaptive Router", Model: "Semantic Router (BERT)", Active: true, BaseLatencyMs: 15, BaseCostPerMillion: 0.01},
		{ID: "n1", Kind: KindProcessing, Label: "Late Chunking", Model: "Jina-Late-Chunking", Active: true, BaseLatencyMs: 45, BaseCostPerMillion: 0.05},
		{ID: "n2", Kind: KindRetrieval, Label: "Hybrid Retrieval", Model: "BM25 + BGE-M3", Active: true, BaseLatencyMs: 120, BaseCostPerMillion: 0.20},
		{ID: "n3", Kind: KindRetrieval, Label: "Knowledge Graph", Model: "Neo4j + GraphRAG", Active: false, BaseLatencyMs: 250, BaseCostPerMillion: 0.40},
		{ID: "n4", Kind: KindRerank, Label: "Custom Reranker", Model: "CoT-Reranker", Active: true, BaseLatencyMs: 180, BaseCostPerMillion: 0.60},
		{ID: "n5", Kind: KindGeneration, Label: "Synthesis Core", Model: "Gemini 3 Flash", Active: true, BaseLatencyMs: 200, BaseCostPerMillion: 0.15},
		{ID: "n6", Kind: KindGuardrail, Label: "Hallucination Check", Model: "Self-RAG Critic", Active: true, BaseLatencyMs: 50, BaseCostPerMillion: 0.05},
	}
	edges := []Edge{
		{ID: "e0-7", Source: "n0", Target: "n7"},
		{ID: "e7-1", Source: "n7", Target: "n1"},
		{ID: "e1-2", Source: "n1", Target: "n2"},
		{ID: "e2-3", Source: "n2", Target: "n3"},
		{ID: "e3-4", Source: "n3", Target: "n4"},
		{ID: "e4-5", Source: "n4", Target: "n5"},
		{ID: "e5-6", Source: "n5", Target: "n6"},
	}

	g := NewGraph()
	for idx, node := range nodes {
		x := 250.0
		if idx%2 != 0 {
			x += 40
		}
		node.Position = &Position{X: x, Y: float64(idx*160 + 20)}
		// ids are unique by construction
		_ = g.AddNode(node)
	}
	for _, edge := range edges {
		_ = g.AddEdge(edge)
	}
	return g
}
