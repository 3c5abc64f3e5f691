// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// cinm-opt builds one of the bundled sample programs, runs a pass pipeline on it and reports
// what the passes did.
//
// The pipeline is taken from -pipeline, or from the CINNAMON_PIPELINE environment variable, or
// else it is the default pipeline of the program. Example:
//
//	cinm-opt -program=matvec -rows=1024 -cols=256 -pipeline='convert-tiled-cinm-to-cnm{workgroup=8x64}' -check
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/cinnamon/pkg/core/interp"
	"github.com/gomlx/cinnamon/pkg/core/ir"
	"github.com/gomlx/cinnamon/pkg/core/pass"
	"github.com/gomlx/cinnamon/pkg/dialects/cnm"
	"github.com/gomlx/cinnamon/pkg/support/fsutil"
	"github.com/gomlx/cinnamon/pkg/support/xslices"
	"github.com/gomlx/cinnamon/pkg/upmem"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagProgram  = flag.String("program", "reduce", "Sample program to build, one of "+strings.Join(xslices.SortedKeys(programs), ", ")+".")
	flagPipeline = flag.String("pipeline", "", "Pipeline of passes to run, e.g. 'pass1{key=value},pass2'. "+
		"If empty, the environment variable "+pass.CINNAMON_PIPELINE+" is used, or else the default pipeline of the program.")
	flagRows       = flag.Int("rows", 1024, "Number of rows of the input matrices.")
	flagCols       = flag.Int("cols", 256, "Number of columns of the input matrices.")
	flagDType      = flag.String("dtype", "Float32", "Data type of the input matrices, e.g. Float32, Float16 or BFloat16.")
	flagPrintIR    = flag.Bool("print-ir", false, "Print the program before and after the pipeline.")
	flagCheck      = flag.Bool("check", false, "Run the program with the interpreter before and after the pipeline and compare the results.")
	flagVerifyEach = flag.Bool("verify-each", true, "Verify the program after each pass.")
	flagOutput     = flag.String("output", "", "If set, the program after the pipeline is written to this file.")
	flagTasklets   = flag.Int("tasklets", upmem.DefaultTasklets, "Number of tasklets the kernels are checked against.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	prog, found := programs[*flagProgram]
	if !found {
		klog.Errorf("Unknown program %q, see 'cinm-opt -help'.", *flagProgram)
		os.Exit(1)
	}
	dtype, err := dtypes.DTypeString(*flagDType)
	if err != nil {
		klog.Errorf("Invalid -dtype=%q: %v", *flagDType, err)
		os.Exit(1)
	}
	pass.DefaultPipeline = prog.pipeline
	pipeline := *flagPipeline
	if pipeline == "" {
		pipeline = pass.PipelineFromEnv()
	}

	module := prog.build(*flagRows, *flagCols, dtype)
	if *flagPrintIR {
		fmt.Println(titleStyle.Render(fmt.Sprintf("%s: input", *flagProgram)))
		fmt.Println(module)
	}
	var inputs, want []*interp.Tensor
	if *flagCheck && prog.executable {
		inputs = sampleInputs(module)
		want = must.M1(interp.New().Call(module, "main", inputs...))
	}

	manager := pass.NewManager().WithVerifyEach(*flagVerifyEach)
	must.M(manager.AddPipeline(pipeline))
	reports, err := manager.Run(module)
	fmt.Println(passesTable(pipeline, reports, err).Render())
	if err != nil {
		klog.Errorf("Pipeline failed: %+v", err)
		os.Exit(1)
	}

	if *flagPrintIR {
		fmt.Println(titleStyle.Render(fmt.Sprintf("%s: after %s", *flagProgram, pipeline)))
		fmt.Println(module)
	}
	if *flagOutput != "" {
		written := must.M1(fsutil.WriteText(*flagOutput, module.String()))
		klog.Infof("Program written to %q", written)
	}
	kernels := kernelsTable(module, *flagTasklets)
	if out := kernels.Render(); out != "" {
		fmt.Println(out)
	}
	if numFailed := kernels.NumFailed(); numFailed > 0 {
		klog.Warningf("%d kernel(s) can't run on a DPU with %d tasklets", numFailed, *flagTasklets)
	}
	if want != nil {
		got := must.M1(interp.New().Call(module, "main", inputs...))
		if err := compare(want, got); err != nil {
			klog.Errorf("Results changed by the pipeline: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Results before and after %q match.\n", pipeline)
	}
}

// passesTable has one row per pass run. If the pipeline failed (err != nil), the last pass is the
// one that failed, and it is shown in red.
func passesTable(pipeline string, reports []pass.Report, err error) *reportTable {
	table := newReportTable(fmt.Sprintf("Pipeline %q", pipeline),
		column{"Pass", lipgloss.Left}, column{"Rewritten", lipgloss.Right}, column{"Mutations", lipgloss.Right},
		column{"Operations", lipgloss.Right}, column{"Duration", lipgloss.Right})
	for ii, r := range reports {
		failed := err != nil && ii == len(reports)-1
		table.AddRow(failed,
			r.Pass,
			humanize.Comma(int64(r.Stats.Rewritten)),
			humanize.Comma(int64(r.Stats.Mutations)),
			fmt.Sprintf("%s -> %s", humanize.Comma(int64(r.OpsBefore)), humanize.Comma(int64(r.OpsAfter))),
			r.Duration.String())
	}
	return table
}

// kernelsTable lists the arguments of the DPU kernel each cnm.launch would run, and whether
// they are valid for numTasklets tasklets.
func kernelsTable(module *ir.Operation, numTasklets int) *reportTable {
	table := newReportTable("Kernels",
		column{"Launch", lipgloss.Left}, column{"Workgroup", lipgloss.Left}, column{"MSize", lipgloss.Right},
		column{"NSize", lipgloss.Right}, column{"MRAM", lipgloss.Right}, column{"Status", lipgloss.Left})
	for _, op := range module.PreOrder(nil) {
		launch, ok := cnm.AsLaunch(op)
		if !ok {
			continue
		}
		args, err := kernelArguments(launch)
		if err == nil {
			err = args.Validate(numTasklets)
		}
		status := "ok"
		if err != nil {
			status = err.Error()
		}
		wg := launch.Workgroup().Type().(*cnm.WorkgroupType)
		table.AddRow(err != nil,
			string(op.Location()),
			wg.String(),
			humanize.Comma(int64(args.MSize)),
			humanize.Comma(int64(args.NSize)),
			humanize.IBytes(upmem.MRAMLayout(args).End),
			status)
	}
	return table
}

// kernelArguments maps a launch to the arguments of the matrix kernel: the last buffer is the
// output, with MSize elements per worker, and the first is the input, with NSize elements per
// output element.
func kernelArguments(launch cnm.LaunchView) (args upmem.Arguments, err error) {
	params := launch.Params()
	if len(params) < 2 {
		return args, errors.Errorf("launch with %d buffers, the kernels take at least 2", len(params))
	}
	input := params[0].Type().(*cnm.BufferType).PerWorker.Size()
	output := params[len(params)-1].Type().(*cnm.BufferType).PerWorker.Size()
	if input%output != 0 {
		return args, errors.Errorf("input of %d elements per worker doesn't split into %d rows", input, output)
	}
	args.MSize = uint32(output)
	args.NSize = uint32(input / output)
	return args, nil
}

func compare(want, got []*interp.Tensor) error {
	if len(want) != len(got) {
		return errors.Errorf("got %d results, wanted %d", len(got), len(want))
	}
	for ii := range want {
		if !slices.Equal(want[ii].Shape.Dimensions, got[ii].Shape.Dimensions) {
			return errors.Errorf("result #%d has shape %s, wanted %s", ii, got[ii].Shape, want[ii].Shape)
		}
		for jj := range want[ii].Data {
			if want[ii].Data[jj] != got[ii].Data[jj] {
				return errors.Errorf("result #%d differs at element %d: got %g, wanted %g",
					ii, jj, got[ii].Data[jj], want[ii].Data[jj])
			}
		}
	}
	return nil
}
