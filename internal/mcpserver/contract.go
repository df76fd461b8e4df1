package mcpserver

// TaskFormatContract describes the task record and the rules the tracker
// enforces, for LLM consumers creating or updating tasks.
const TaskFormatContract = `# Task Format Contract

Every task exposed by the tracker has exactly these fields:

| Field        | Type    | Notes                                              |
|--------------|---------|----------------------------------------------------|
| id           | string  | Assigned on creation, never reused                  |
| title        | string  | REQUIRED, must contain a non-space character        |
| description  | string  | Free text, may be empty                             |
| status       | string  | One of OPEN, IN_PROGRESS, DONE                      |
| priority     | integer | 1 (highest) to 5 (lowest), inclusive                |
| created_at   | string  | ISO-8601 with offset, e.g. 2025-01-20T09:30:00+00:00 |
| updated_at   | string  | Same format, never earlier than created_at          |

## Rules

1. **New tasks start as OPEN.** ` + "`" + `create_task` + "`" + ` takes title, description and priority only.
2. **Updates are partial.** Only the fields you pass to ` + "`" + `update_task` + "`" + ` are changed.
3. **Updates are all-or-nothing.** If any supplied field is invalid, nothing changes and the
   error lists every offending field.
4. **No-op updates are free.** Passing values equal to the current ones does not bump
   updated_at and does not add a history entry.
5. **Optimistic concurrency.** Pass the ` + "`" + `etag` + "`" + ` returned by ` + "`" + `get_task` + "`" + ` as ` + "`" + `if_match` + "`" + `
   to make the update fail if someone else changed the task first.
6. **Listing order** is creation order, oldest first.
7. **History** records CREATE, UPDATE and DELETE for every committed change, oldest first.

## Inbox drafts

Tasks can also be created by dropping a Markdown file into the inbox directory:

` + "```" + `markdown
---
title: Fix login redirect      # optional, falls back to the first "# " heading
priority: 2                    # REQUIRED
status: IN_PROGRESS            # optional, defaults to OPEN
---

The body becomes the task description.
` + "```" + `

Accepted drafts move to ` + "`" + `processed/` + "`" + `. Rejected drafts move to ` + "`" + `rejected/` + "`" + ` with a
` + "`" + `.reason` + "`" + ` file next to them.
`
