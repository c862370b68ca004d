package decompose

import (
	"fmt"

	"github.com/jimmy24599/kairo-sub000/internal/project"
	"github.com/jimmy24599/kairo-sub000/internal/tools"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// overviewPrompt is the prompt template for splitting a request into
// top-level tasks.
const overviewPrompt = `Break this user request into an ordered list of top-level tasks. Tasks run one after another, in the order you list them, against the same working tree.

User request:
%s

Project:
%s
Return ONLY a JSON array with this exact structure (no other text):
[
  {"description": "What this task accomplishes, in one or two sentences"}
]

Guidelines:
- Prefer 2-5 tasks; a trivial request may need only one
- Each task should produce an observable change or piece of information
- Order matters: put inspection and setup before edits that depend on them
- Do not repeat work the previous run summary says is already done`

// subtaskPrompt is the prompt template for turning one task into tool
// invocations.
const subtaskPrompt = `You are planning the concrete steps for one task of a larger request.

User request:
%s

Current task (#%d):
%s

Project:
%s
Available operations:
%s
Return ONLY a JSON array of at most %d steps with this exact structure (no other text):
[
  {
    "operation": "one of the operation names above",
    "parameters": {"name": "value"},
    "explanation": "Why this step is needed"
  }
]

Guidelines:
- Use only the listed operations and their documented parameters
- Paths are relative to the project root
- Steps run in order; later steps may rely on earlier ones
- Read a file before editing it unless you are creating it`

func buildOverviewPrompt(request string, pctx *project.Context) string {
	return fmt.Sprintf(overviewPrompt, request, pctx.Describe())
}

func buildSubtaskPrompt(request string, task *models.OverviewTask, pctx *project.Context, catalogue *tools.Catalogue, limit int) string {
	return fmt.Sprintf(subtaskPrompt, request, task.Ordinal, task.Description, pctx.Describe(), catalogue.Describe(), limit)
}
