package build

import (
	"fmt"

	"lathe/codegen"
	"lathe/isa"
	"lathe/jit"
	"lathe/llvmgen"
	"lathe/logging"
	"lathe/module"
	"lathe/object"
)

// program is the set of declarations and built bodies of one artifact
type program struct {
	runtimeID, mainID, importID module.FuncID

	runtime, main *codegen.Context
}

// declareProgram declares the functions of the program in m: the runtime is
// local, `main` is exported and the increment function is imported
func (c *Compiler) declareProgram(m module.Module) (*program, error) {
	incSig := incrementSignature(m)

	runtimeID, err := m.DeclareFunction(runtimeName, module.Local, incSig)
	if err != nil {
		return nil, err
	}

	mainID, err := m.DeclareFunction(mainName, module.Export, mainSignature(m))
	if err != nil {
		return nil, err
	}

	importID, err := m.DeclareFunction(c.proj.Runtime.ImportSymbol, module.Import, incSig)
	if err != nil {
		return nil, err
	}

	return &program{runtimeID: runtimeID, mainID: mainID, importID: importID}, nil
}

// defineProgram builds the bodies of the program's functions and defines them
// in m
func (c *Compiler) defineProgram(m module.Module, prog *program) error {
	err := c.phase("Building", func() error {
		decls := m.Declarations()

		runtimeDecl, err := decls.Function(prog.runtimeID)
		if err != nil {
			return err
		}

		runtimeFn, err := c.buildIncrementRuntime(prog.runtimeID, runtimeDecl.Signature)
		if err != nil {
			return err
		}

		mainDecl, err := decls.Function(prog.mainID)
		if err != nil {
			return err
		}

		mainFn, err := c.buildMain(m, prog.mainID, prog.importID, mainDecl.Signature)
		if err != nil {
			return err
		}

		prog.runtime = codegen.ForFunction(runtimeFn)
		prog.main = codegen.ForFunction(mainFn)
		return nil
	})
	if err != nil {
		return err
	}

	logging.LogIR(runtimeName, prog.runtime.Func.String())
	logging.LogIR(mainName, prog.main.Func.String())

	return c.phase("Compiling", func() error {
		if err := m.DefineFunction(prog.runtimeID, prog.runtime); err != nil {
			return err
		}

		return m.DefineFunction(prog.mainID, prog.main)
	})
}

// -----------------------------------------------------------------------------

// BuildObject compiles the program into a relocatable object.  When the host
// can run compiled code, the runtime is also run in process with an argument
// of 1 as a check of the generated code.
func (c *Compiler) BuildObject() (*object.Product, error) {
	var om *object.Module
	var prog *program

	err := c.phase("Declaring", func() error {
		target, err := c.artifactISA()
		if err != nil {
			return err
		}

		ob, err := object.NewBuilder(target, c.proj.Name)
		if err != nil {
			return err
		}

		om = object.New(ob)
		prog, err = c.declareProgram(om)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := c.defineProgram(om, prog); err != nil {
		return nil, err
	}

	if jitAvailable() {
		if _, err := c.runIncrement(prog.runtime, 1); err != nil {
			return nil, err
		}
	} else {
		logging.LogBuildWarning("jit", fmt.Sprintf("`%s` was not run: the host cannot run compiled code", runtimeName))
	}

	var product *object.Product
	err = c.phase("Finalizing", func() (err error) {
		product, err = om.Finish()
		return
	})
	if err != nil {
		return nil, err
	}

	logging.LogResult("symbol mangling", product.Mangling())
	return product, nil
}

// BuildLLVM translates the program into an LLVM IR module
func (c *Compiler) BuildLLVM() (*llvmgen.Module, error) {
	var lm *llvmgen.Module
	var prog *program

	err := c.phase("Declaring", func() error {
		target, err := c.artifactISA()
		if err != nil {
			return err
		}

		lm = llvmgen.New(target, c.proj.Name)
		prog, err = c.declareProgram(lm)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := c.defineProgram(lm, prog); err != nil {
		return nil, err
	}

	if err := c.phase("Finalizing", lm.Finish); err != nil {
		return nil, err
	}

	return lm, nil
}

// -----------------------------------------------------------------------------

// jitAvailable indicates whether the host can run compiled code in process
func jitAvailable() bool {
	host := isa.HostTriple()
	return host.Architecture == isa.ArchX86_64 &&
		(host.OperatingSystem == isa.OSLinux || host.OperatingSystem == isa.OSDarwin)
}

// RunRuntime builds `increment_runtime`, compiles it in process and returns
// the result of calling it with arg
func (c *Compiler) RunRuntime(arg int32) (int32, error) {
	jm, id, err := c.declareRuntimeJIT()
	if err != nil {
		return 0, err
	}
	defer jm.Free()

	var runtime *codegen.Context
	err = c.phase("Building", func() error {
		decl, err := jm.Declarations().Function(id)
		if err != nil {
			return err
		}

		fn, err := c.buildIncrementRuntime(id, decl.Signature)
		if err != nil {
			return err
		}

		runtime = codegen.ForFunction(fn)
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.LogIR(runtimeName, runtime.Func.String())
	return c.runJIT(jm, id, runtime, arg)
}

// runIncrement defines an already built runtime in a fresh JIT module and
// calls it with arg
func (c *Compiler) runIncrement(runtime *codegen.Context, arg int32) (int32, error) {
	jm, id, err := c.declareRuntimeJIT()
	if err != nil {
		return 0, err
	}
	defer jm.Free()

	return c.runJIT(jm, id, runtime, arg)
}

// declareRuntimeJIT creates a JIT module for the host and declares the
// runtime in it
func (c *Compiler) declareRuntimeJIT() (jm *jit.Module, id module.FuncID, err error) {
	err = c.phase("Declaring", func() error {
		target, err := c.jitISA()
		if err != nil {
			return err
		}

		jb, err := jit.NewBuilderWithISA(target)
		if err != nil {
			return err
		}

		jm = jit.New(jb)
		id, err = jm.DeclareFunction(runtimeName, module.Local, incrementSignature(jm))
		return err
	})

	return
}

// runJIT defines runtime as id, finalizes jm and calls the runtime with arg
func (c *Compiler) runJIT(jm *jit.Module, id module.FuncID, runtime *codegen.Context, arg int32) (int32, error) {
	err := c.phase("Compiling", func() error {
		return jm.DefineFunction(id, runtime)
	})
	if err != nil {
		return 0, err
	}

	if err := c.phase("Finalizing", jm.FinalizeDefinitions); err != nil {
		return 0, err
	}

	var result int32
	err = c.phase("Running", func() error {
		var inc func(int32) int32
		if err := jm.Bind(id, &inc); err != nil {
			return err
		}

		result = inc(arg)
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.LogResult(fmt.Sprintf("%s(%d)", runtimeName, arg), result)
	return result, nil
}
