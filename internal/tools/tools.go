package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/envcheck"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/filestore"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitout"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/workflow"
)

// RegisterAll registers all knitscript-mcp tools and resources.
func RegisterAll(s *server.MCPServer, o *workflow.Orchestrator, probe *envcheck.Probe) {
	s.AddTools(
		writeFileTool(),
		compileKnitScriptTool(o),
		convertKnitoutToDatTool(o),
		checkEnvironmentTool(probe),
		saveAndCompileTool(o),
	)
	s.AddResourceTemplate(greetingResource())
}

type writeFileResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeFileTool() server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("write_file",
			mcp.WithDescription("Write content to a file, creating parent directories as needed."),
			mcp.WithString("file_path",
				mcp.Description("Path where the file should be saved"),
				mcp.Required(),
			),
			mcp.WithString("content",
				mcp.Description("Content to write to the file"),
				mcp.Required(),
			),
		),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			_ = ctx
			args := req.GetArguments()
			filePath, errText := requiredString(args, "file_path")
			if errText != "" {
				return jsonResult(writeFileResult{Success: false, Error: errText})
			}
			content, _ := args["content"].(string)

			abs, werr := filestore.Write(filePath, content)
			if werr != nil {
				return jsonResult(writeFileResult{
					Success: false,
					Error:   fmt.Sprintf("Failed to write file: %v", werr),
				})
			}
			return jsonResult(writeFileResult{
				Success:  true,
				FilePath: abs,
				Message:  fmt.Sprintf("File successfully written to %s", abs),
			})
		},
	}
}

type compileResult struct {
	Success       bool   `json:"success"`
	KsFilePath    string `json:"ks_file_path,omitempty"`
	KOutputPath   string `json:"k_output_path,omitempty"`
	DatOutputPath string `json:"dat_output_path,omitempty"`
	KTmpPath      string `json:"k_tmp_path,omitempty"`
	DatTmpPath    string `json:"dat_tmp_path,omitempty"`
	Message       string `json:"message,omitempty"`
	TmpCopyError  string `json:"tmp_copy_error,omitempty"`
	Error         string `json:"error,omitempty"`
}

func compileKnitScriptTool(o *workflow.Orchestrator) server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("compile_knitscript",
			mcp.WithDescription("Compile a KnitScript (.ks) file to Knitout (.k) and optionally DAT format."),
			mcp.WithString("ks_file_path",
				mcp.Description("Path to the .ks KnitScript source file"),
				mcp.Required(),
			),
			mcp.WithString("k_output_path",
				mcp.Description("Optional path for .k output (defaults to same name as input)"),
			),
			mcp.WithString("dat_output_path",
				mcp.Description("Optional path for .dat output (if omitted, no DAT file is generated)"),
			),
		),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			sourcePath, errText := requiredString(args, "ks_file_path")
			if errText != "" {
				return jsonResult(compileResult{Success: false, Error: errText})
			}
			kOut, _ := args["k_output_path"].(string)
			datOut, _ := args["dat_output_path"].(string)

			outcome := o.Compile(ctx, workflow.CompileRequest{
				SourcePath:  sourcePath,
				KnitoutPath: kOut,
				DatPath:     datOut,
			})
			if outcome.Err != nil {
				return jsonResult(compileResult{Success: false, Error: outcome.Err.Message})
			}
			return jsonResult(compileResult{
				Success:       true,
				KsFilePath:    outcome.SourcePath,
				KOutputPath:   outcome.KnitoutPath,
				DatOutputPath: outcome.DatPath,
				KTmpPath:      outcome.KnitoutStaged,
				DatTmpPath:    outcome.DatStaged,
				Message:       "KnitScript compilation successful",
				TmpCopyError:  joinAdvisories(outcome.Advisories),
			})
		},
	}
}

type convertResult struct {
	Success      bool    `json:"success"`
	OutputPath   string  `json:"output_path,omitempty"`
	DatTmpPath   string  `json:"dat_tmp_path,omitempty"`
	Stdout       *string `json:"stdout,omitempty"`
	Stderr       *string `json:"stderr,omitempty"`
	TmpCopyError string  `json:"tmp_copy_error,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func convertKnitoutToDatTool(o *workflow.Orchestrator) server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("convert_knitout_to_dat",
			mcp.WithDescription("Convert a Knitout (.k) file to DAT format using knitout-to-dat.js. Also saves a copy to the staging directory."),
			mcp.WithString("file_path",
				mcp.Description("Path to the .k Knitout file"),
				mcp.Required(),
			),
			mcp.WithString("output_format",
				mcp.Description("Output format (default: dat)"),
				mcp.DefaultString(knitout.DefaultFormat),
			),
		),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			filePath, errText := requiredString(args, "file_path")
			if errText != "" {
				return jsonResult(convertResult{Success: false, Error: errText})
			}
			format, _ := args["output_format"].(string)

			out, cerr := o.Converter.Convert(ctx, filePath, format)
			if cerr != nil {
				res := convertResult{Success: false, Error: cerr.Message}
				// Streams exist only when the process actually ran.
				if cerr.Kind == toolerr.External {
					res.Stdout = &out.Stdout
					res.Stderr = &out.Stderr
				}
				return jsonResult(res)
			}

			res := convertResult{
				Success:    true,
				OutputPath: out.OutputPath,
				Stdout:     &out.Stdout,
			}
			if out.Stderr != "" {
				res.Stderr = &out.Stderr
			}
			staged, serr := o.Staging.Stage(out.OutputPath)
			if serr != nil {
				res.TmpCopyError = serr.Error()
			} else {
				res.DatTmpPath = staged
			}
			return jsonResult(res)
		},
	}
}

func checkEnvironmentTool(probe *envcheck.Probe) server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("check_knitscript_environment",
			mcp.WithDescription("Check if the KnitScript execution environment is properly set up."),
		),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			_ = req
			return jsonResult(probe.Check(ctx))
		},
	}
}

type saveCompileResult struct {
	Success       bool   `json:"success"`
	KsFilePath    string `json:"ks_file_path,omitempty"`
	KOutputPath   string `json:"k_output_path,omitempty"`
	DatOutputPath string `json:"dat_output_path,omitempty"`
	KsTmpPath     string `json:"ks_tmp_path,omitempty"`
	KTmpPath      string `json:"k_tmp_path,omitempty"`
	DatTmpPath    string `json:"dat_tmp_path,omitempty"`
	TmpCopyError  string `json:"tmp_copy_error,omitempty"`
	NodeDatStdout string `json:"node_dat_stdout,omitempty"`
	NodeDatStderr string `json:"node_dat_stderr,omitempty"`
	Error         string `json:"error,omitempty"`
}

func saveAndCompileTool(o *workflow.Orchestrator) server.ServerTool {
	return server.ServerTool{
		Tool: mcp.NewTool("save_and_compile_knitscript",
			mcp.WithDescription("Save KnitScript content to a file and compile it to Knitout (and optionally DAT). Also saves copies to the staging directory."),
			mcp.WithString("file_path",
				mcp.Description("Path where the .ks file should be saved"),
				mcp.Required(),
			),
			mcp.WithString("content",
				mcp.Description("KnitScript code content"),
				mcp.Required(),
			),
			mcp.WithBoolean("generate_dat",
				mcp.Description("Whether to generate a DAT file (default: true)"),
				mcp.DefaultBool(true),
			),
		),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			filePath, errText := requiredString(args, "file_path")
			if errText != "" {
				return jsonResult(saveCompileResult{Success: false, Error: errText})
			}
			content, _ := args["content"].(string)
			generateDat := true
			if v, ok := args["generate_dat"].(bool); ok {
				generateDat = v
			}

			outcome := o.SaveAndCompile(ctx, workflow.SaveCompileRequest{
				Path:        filePath,
				Content:     content,
				GenerateDat: generateDat,
			})

			res := saveCompileResult{
				Success:       outcome.Err == nil,
				KsFilePath:    outcome.SourcePath,
				KsTmpPath:     outcome.SourceStaged,
				TmpCopyError:  joinAdvisories(outcome.Advisories),
				NodeDatStdout: outcome.ConverterStdout,
				NodeDatStderr: outcome.ConverterStderr,
			}
			if outcome.Err != nil {
				res.Error = outcome.Err.Message
			}
			// Compile-stage outputs survive a failed DAT conversion but not
			// a failed compile.
			if outcome.Compile.Err == nil && outcome.Compile.KnitoutPath != "" {
				res.KOutputPath = outcome.Compile.KnitoutPath
				res.DatOutputPath = outcome.Compile.DatPath
				res.KTmpPath = outcome.Compile.KnitoutStaged
				res.DatTmpPath = outcome.Compile.DatStaged
			}
			return jsonResult(res)
		},
	}
}

func greetingResource() (mcp.ResourceTemplate, server.ResourceTemplateHandlerFunc) {
	template := mcp.NewResourceTemplate(
		"greeting://{name}",
		"greeting",
		mcp.WithTemplateDescription("Get a personalized greeting"),
		mcp.WithTemplateMIMEType("text/plain"),
	)
	handler := func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		_ = ctx
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     fmt.Sprintf("Hello, %s!", greetingName(req.Params.URI)),
			},
		}, nil
	}
	return template, handler
}

// greetingName extracts and decodes the {name} segment of a greeting:// URI.
func greetingName(uri string) string {
	name := strings.TrimPrefix(uri, "greeting://")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	if name == "" {
		return "anonymous"
	}
	return name
}

func joinAdvisories(advisories []string) string {
	return strings.Join(advisories, "; ")
}

func requiredString(args map[string]any, key string) (string, string) {
	value, _ := args[key].(string)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Sprintf("%s is required", key)
	}
	return value, ""
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal tool response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}
