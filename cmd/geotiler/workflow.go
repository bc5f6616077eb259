package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/alessio/shellescape"
	wfv1 "github.com/argoproj/argo-workflows/v3/pkg/apis/workflow/v1alpha1"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	k8sv1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	k8smeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"

	"github.com/airbusgeo/geotiler"
)

// set with -ldflags "-X main.defaultImage=..."
var defaultImage string = "build-error-this-variable-should-have-been-set-on-build"

type workflowFlags struct {
	image       string
	jobID       string
	shell       bool
	volumeClaim string
	mountPath   string
	cpu         string
	memory      string
	retries     int
}

// A workflowJob is one independent command of a fan-out.
type workflowJob struct {
	name    string
	command []string
}

func newWorkflowCommand() *cobra.Command {
	wf := &workflowFlags{}
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "emit an argo workflow running one geotiler job per source or per split",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&wf.image, "dockerImage", defaultImage, "docker image for workers")
	pf.StringVar(&wf.jobID, "jobID", "", "(advanced) use predefined job identifier")
	pf.BoolVar(&wf.shell, "shell", false, "output shell script instead of argo workflow")
	pf.StringVar(&wf.volumeClaim, "volume-claim", "", "persistent volume claim holding the data, mounted in every worker")
	pf.StringVar(&wf.mountPath, "mount", "/data", "mount path of --volume-claim")
	pf.StringVar(&wf.cpu, "cpu", "2", "cpu request of each worker")
	pf.StringVar(&wf.memory, "memory", "2G", "memory request of each worker")
	pf.IntVar(&wf.retries, "retries", 3, "retry limit of each worker")
	cmd.AddCommand(newWorkflowResampleCommand(wf), newWorkflowTileCommand(wf))
	return cmd
}

func newWorkflowResampleCommand(wf *workflowFlags) *cobra.Command {
	var splits []string
	var scale float64
	var algorithm, switches string
	var workers int
	var cog, verify bool
	cmd := &cobra.Command{
		Use:   "resample srcroot dstroot",
		Short: "resample each split of srcroot in its own worker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (geotiler.Pipeline{Scale: scale, Algorithm: algorithm, Switches: switches}).Validate(); err != nil {
				return err
			}
			jobs := resampleJobs(args[0], args[1], splits, scale, algorithm, switches, workers, cog, verify)
			return wf.emit(cmd.OutOrStdout(), "geotiler-resample-", jobs)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&splits, "splits", geotiler.DefaultSplits, "dataset splits, one worker each")
	flags.Float64Var(&scale, "scale", 2, "ratio between output and input pixel sizes")
	flags.StringVar(&algorithm, "algorithm", "average", "resampling algorithm")
	flags.StringVar(&switches, "switches", "", "extra gdalwarp switches")
	flags.IntVar(&workers, "workers", 0, "concurrent resamplings inside each worker")
	flags.BoolVar(&cog, "cog", false, "write cloud optimized geotiffs")
	flags.BoolVar(&verify, "verify", false, "regenerate existing outputs that are not complete tiffs")
	return cmd
}

func resampleJobs(src, dst string, splits []string, scale float64, algorithm, switches string,
	workers int, cog, verify bool) []workflowJob {
	jobs := make([]workflowJob, 0, len(splits))
	for _, split := range splits {
		command := []string{"geotiler", "resample", src, dst,
			"--no-progress",
			"--splits", split,
			"--scale", fmt.Sprintf("%g", scale),
			"--algorithm", algorithm,
			"--log", filepath.Join(dst, split, "process_log.txt"),
		}
		if switches != "" {
			command = append(command, "--switches", switches)
		}
		if workers > 0 {
			command = append(command, "--workers", fmt.Sprintf("%d", workers))
		}
		if cog {
			command = append(command, "--cog")
		}
		if verify {
			command = append(command, "--verify")
		}
		jobs = append(jobs, workflowJob{name: "resample-" + split, command: command})
	}
	return jobs
}

func newWorkflowTileCommand(wf *workflowFlags) *cobra.Command {
	var tileSize int
	var threshold, contrast float64
	var previews bool
	cmd := &cobra.Command{
		Use:   "tile dstdir source.tif...",
		Short: "tile each source in its own worker, into dstdir/<source>_tiles",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := geotiler.NewExtractor(geotiler.TileSize(tileSize), geotiler.Threshold(threshold)); err != nil {
				return err
			}
			jobs := tileJobs(args[0], args[1:], tileSize, threshold, contrast, previews)
			return wf.emit(cmd.OutOrStdout(), "geotiler-tile-", jobs)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&tileSize, "tilesize", 416, "tile width and height, in pixels")
	flags.Float64Var(&threshold, "threshold", 100, "emptiness threshold")
	flags.Float64Var(&contrast, "contrast", geotiler.DefaultContrast, "preview contrast factor")
	flags.BoolVar(&previews, "preview", false, "render tile previews")
	return cmd
}

func tileJobs(dst string, sources []string, tileSize int, threshold, contrast float64, previews bool) []workflowJob {
	jobs := make([]workflowJob, 0, len(sources))
	for i, src := range sources {
		command := []string{"geotiler", "tile", src,
			"--no-progress",
			"--tiles", filepath.Join(dst, defaultOutputDir(filepath.Base(src), "tiles")),
			"--tilesize", fmt.Sprintf("%d", tileSize),
			"--threshold", fmt.Sprintf("%g", threshold),
		}
		if previews {
			command = append(command,
				"--preview",
				"--previews", filepath.Join(dst, defaultOutputDir(filepath.Base(src), "previews")),
				"--contrast", fmt.Sprintf("%g", contrast))
		}
		jobs = append(jobs, workflowJob{name: fmt.Sprintf("tile-%d", i), command: command})
	}
	return jobs
}

func (wf *workflowFlags) emit(w io.Writer, generateName string, jobs []workflowJob) error {
	if wf.shell {
		fmt.Fprintln(w, "set -e")
		for _, j := range jobs {
			fmt.Fprintln(w, shellescape.QuoteCommand(j.command))
		}
		return nil
	}
	if wf.jobID == "" {
		wf.jobID = uuid.New().String()
	}
	workflow, err := wf.build(generateName, jobs)
	if err != nil {
		return err
	}
	yb, err := yaml.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	_, err = w.Write(yb)
	return err
}

func (wf *workflowFlags) build(generateName string, jobs []workflowJob) (*wfv1.Workflow, error) {
	cpu, err := resource.ParseQuantity(wf.cpu)
	if err != nil {
		return nil, fmt.Errorf("invalid cpu request %q: %w", wf.cpu, err)
	}
	mem, err := resource.ParseQuantity(wf.memory)
	if err != nil {
		return nil, fmt.Errorf("invalid memory request %q: %w", wf.memory, err)
	}
	container := &k8sv1.Container{
		ImagePullPolicy: k8sv1.PullAlways,
		Resources: k8sv1.ResourceRequirements{
			Requests: k8sv1.ResourceList{
				k8sv1.ResourceCPU:    cpu,
				k8sv1.ResourceMemory: mem,
			},
		},
	}
	defaults := &wfv1.Template{Container: container}
	if wf.volumeClaim != "" {
		defaults.Volumes = []k8sv1.Volume{{
			Name: "data",
			VolumeSource: k8sv1.VolumeSource{
				PersistentVolumeClaim: &k8sv1.PersistentVolumeClaimVolumeSource{
					ClaimName: wf.volumeClaim,
				},
			},
		}}
		container.WorkingDir = wf.mountPath
		container.VolumeMounts = []k8sv1.VolumeMount{{
			Name:      "data",
			MountPath: wf.mountPath,
		}}
	}
	workflow := &wfv1.Workflow{
		ObjectMeta: k8smeta.ObjectMeta{
			GenerateName: generateName,
			Labels:       map[string]string{"geotiler/job-id": wf.jobID},
		},
		TypeMeta: k8smeta.TypeMeta{
			APIVersion: "argoproj.io/v1alpha1",
			Kind:       "Workflow",
		},
		Spec: wfv1.WorkflowSpec{
			TTLStrategy: &wfv1.TTLStrategy{
				SecondsAfterSuccess: int32Ptr(3600),
			},
			Entrypoint:       "geotiler",
			TemplateDefaults: defaults,
			Templates: []wfv1.Template{
				{Name: "geotiler"},
			},
		},
	}
	ps := wfv1.ParallelSteps{}
	for _, j := range jobs {
		ps.Steps = append(ps.Steps, wfv1.WorkflowStep{
			Name: j.name,
			Inline: &wfv1.Template{
				RetryStrategy: &wfv1.RetryStrategy{
					Limit: intOrStringPtr(wf.retries),
				},
				Container: &k8sv1.Container{
					Name:    "worker",
					Image:   wf.image,
					Command: j.command,
				},
			},
		})
	}
	workflow.Spec.Templates[0].Steps = append(workflow.Spec.Templates[0].Steps, ps)
	return workflow, nil
}

func int32Ptr(val int32) *int32 {
	a := val
	return &a
}

func intOrStringPtr(val int) *intstr.IntOrString {
	a := intstr.FromInt(val)
	return &a
}
