package mcpserver

// NodeFormatContract describes the node file format that LLM consumers
// should follow when creating nodes or editing node files by hand.
const NodeFormatContract = `# Sowilo Node Format Contract

Every learning node is one Markdown file at ` + "`" + `<id>.md` + "`" + ` inside the vault.
The id has the form ` + "`" + `<path-slug>/<node-slug>` + "`" + `, lowercase letters, digits, and dashes.

## Structure

` + "```" + `markdown
---
id: go/channels                 # REQUIRED - stable identifier, matches the file path
title: Channels                 # REQUIRED - display name
summary: Typed pipes between goroutines
path: go                        # grouping; defaults to the first id segment
type: concept                   # concept | practice | project | checkpoint
status: locked                  # locked | available | in-progress | mastered | paused
tags: [concurrency]
prerequisites: [go/goroutines]  # ids that must be mastered first
unlocks: [go/select]            # advisory inverse edges
familiarity: 0                  # 0..5
srs_stage: 0                    # index into the review interval table
last_reviewed: 2024-01-01T00:00:00Z
next_review: 2024-01-04T00:00:00Z
created: 2024-01-01T00:00:00Z
updated: 2024-01-01T00:00:00Z
---

Body text in standard Markdown. Link other nodes with [[go/goroutines]].
` + "```" + `

## Rules

1. **Frontmatter is mandatory.** Files without it are ignored.
2. **Status** defaults to ` + "`" + `locked` + "`" + ` when prerequisites are listed, otherwise ` + "`" + `available` + "`" + `.
3. **Prerequisites** may reference nodes that do not exist yet. Such a node stays locked
   until every referenced id exists and is mastered (or reaches the mastery threshold).
4. **Scheduling fields** (` + "`" + `familiarity` + "`" + `, ` + "`" + `srs_stage` + "`" + `, review timestamps) are maintained
   by ` + "`" + `review_node` + "`" + `. Out-of-range values are clamped on the next review.
5. **Unknown keys** are preserved when sowilo rewrites the file.
6. **Timestamps** are RFC 3339 in UTC.
7. **Encoding** is UTF-8 with a trailing newline.

## Workflow

- ` + "`" + `next_node` + "`" + ` tells you what to study. Due reviews always come first.
- After studying, call ` + "`" + `review_node` + "`" + ` with again, hard, good, or easy.
- Reviews that bring a node to mastery unlock its dependents.
`
