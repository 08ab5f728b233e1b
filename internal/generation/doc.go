// Package generation defines the boundary between the pipeline and external
// AI/LLM services. The Generator interface turns a topic's source material
// into multiple-choice questions of one difficulty tier; platform/gemini
// provides the Gemini implementation, in text mode or document mode.
package generation
