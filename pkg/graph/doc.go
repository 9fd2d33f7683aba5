// Package graph provides the serialization format for package dependency
// graphs.
//
// The format sits at the boundary between the in-memory [dag.DAG] built by
// the gallery and the JSON returned by the HTTP API and the CLI. Well-known
// node metadata (version, framework, error) is lifted into typed fields:
//
//	{
//	  "root": "newtonsoft.json.bson",
//	  "moniker": "netstandard2.0",
//	  "nodes": [
//	    {"id": "newtonsoft.json.bson", "label": "Newtonsoft.Json.Bson", "row": 0, "version": "1.0.2"},
//	    {"id": "newtonsoft.json", "label": "Newtonsoft.Json", "row": 1, "version": "12.0.1"}
//	  ],
//	  "edges": [{"from": "newtonsoft.json.bson", "to": "newtonsoft.json", "version_spec": "12.0.1"}]
//	}
//
// Common operations:
//
//	data, _ := graph.MarshalGraph(d)       // DAG → []byte
//	parsed, _ := graph.UnmarshalGraph(data) // []byte → Graph
//	d2, _ := graph.ToDAG(parsed)            // Graph → DAG
//
// [dag.DAG]: github.com/matzehuels/nugallery/pkg/dag
package graph
