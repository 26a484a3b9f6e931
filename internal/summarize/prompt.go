// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-trends/pkg/types"
)

// outputFormatEN is the heading schema every summary follows. The aggregate
// stage parses artifacts by these headings, so both languages keep the
// English heading text.
const outputFormatEN = `# Paper Info

## Title
Title of the paper.

## Authors
Authors, as [Author 1, Author 2, ...].

## Affiliations
Author affiliations, as [(Institution 1, Country 1), (Institution 2, Country 2), ...].

# Brief Summary

## Highlight
4-5 sentences covering the research problem, the core method and contribution, and the advantage over prior work, with key result numbers.

## Keywords
Five English noun keywords, as [Term 1, Term 2, ...].

# Detailed Summary

## 1. Motivation
### 1.1 Background
### 1.2 Problem Statement

## 2. State-of-the-Art Methods
### 2.1 Existing Methods
### 2.2 Limitations of Existing Methods

## 3. Proposed Method
### 3.1 Main Contributions
### 3.2 Core Idea
### 3.3 Novelty

## 4. Experiment Results
### 4.1 Experimental Setup
### 4.2 Experimental Results

## 5. Limitations and Future Work
### 5.1 Limitations
### 5.2 Future Directions`

const outputFormatCH = `# Paper Info

## Title
文章题目。

## Authors
文章作者，格式为 [作者 1, 作者 2, ...]。

## Affiliations
作者所属机构，格式为 [(机构 1, 国家 1), (机构 2, 国家 2), ...]。

# Brief Summary

## Highlight
4-5 句话，涵盖论文解决的研究问题、核心方法与贡献，以及相对现有技术的优势（包含关键结果数据）。

## Keywords
5 个中文名词关键词，格式为 [术语1, 术语2, ...]。

# Detailed Summary

## 1. Motivation
### 1.1 Background
### 1.2 Problem Statement

## 2. State-of-the-Art Methods
### 2.1 Existing Methods
### 2.2 Limitations of Existing Methods

## 3. Proposed Method
### 3.1 Main Contributions
### 3.2 Core Idea
### 3.3 Novelty

## 4. Experiment Results
### 4.1 Experimental Setup
### 4.2 Experimental Results

## 5. Limitations and Future Work
### 5.1 Limitations
### 5.2 Future Directions`

var prompts = map[string]*template.Template{
	types.LangEN: template.Must(template.New("EN").Parse(`<Instructions>
As an expert in computer science, analyze the paper in <Article Content> and write an English summary.
Follow every Markdown heading in <Output Format> exactly and in order.
- Start each section with its heading; use bullet points or short paragraphs.
- Paraphrase and synthesize; do not copy the paper's text.
- Output only the summary.
</Instructions>

<Article Content>
Title: {{.Title}}

{{.Text}}
</Article Content>

<Output Format>
` + outputFormatEN + `
</Output Format>
`)),
	types.LangCH: template.Must(template.New("CH").Parse(`<Instructions>
作为计算机科学领域的专家，请分析 <Article Content> 中的论文并输出中文总结。
严格按顺序使用 <Output Format> 中的全部 Markdown 标题，标题保持英文原样。
- 每个部分以指定标题开头，内容使用要点或简洁段落。
- 对论文内容进行归纳，不要直接复制原文。
- 仅输出总结内容。
</Instructions>

<Article Content>
Title: {{.Title}}

{{.Text}}
</Article Content>

<Output Format>
` + outputFormatCH + `
</Output Format>
`)),
}

// Prompt renders the summary prompt for lang.
func Prompt(lang, title, text string) (string, error) {
	tmpl, ok := prompts[strings.ToUpper(lang)]
	if !ok {
		return "", fmt.Errorf("no summary prompt for language %q", lang)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Title, Text string }{title, text}); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", lang, err)
	}
	return buf.String(), nil
}
