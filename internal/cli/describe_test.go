package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/internal/utils"
)

type DescriberTestSuite struct {
	suite.Suite
	out       bytes.Buffer
	describer *Describer
}

func (s *DescriberTestSuite) SetupTest() {
	s.out.Reset()
	diagnostics := utils.NewDiagnosticSystem(utils.DiagnosticInfo).WithOutput(&s.out, &s.out)
	s.describer = NewDescriber(diagnostics)
}

func (s *DescriberTestSuite) TestAnnotationsAndDescriptor() {
	root := bankModule(s.T(), map[string]string{"ee.yaml": bankDescriptor})

	desc, err := s.describer.Run(Config{Directories: []string{"./..."}})
	s.Require().NoError(err)

	md := desc.Metadata
	s.Equal("bank", md.Application)
	s.Equal("bank", md.Module)
	s.Equal(filepath.Join(root, "ee.yaml"), desc.Descriptor)

	s.Require().Len(desc.Packages, 2, "cmd/bank has nothing annotated")
	paths := []string{desc.Packages[0].PackagePath, desc.Packages[1].PackagePath}
	s.ElementsMatch([]string{"github.com/acme/bank/v2/audit", "github.com/acme/bank/v2/bank"}, paths)

	counter, ok := md.Component("Counter")
	s.Require().True(ok)
	s.Equal(metadata.KindStateless, counter.Kind)
	s.Equal("bank.CounterBean", counter.ClassName)
	s.Equal([]string{"audit.Logger"}, counter.Interceptors)
	s.Require().NotNil(counter.Pool)
	s.Equal(8, counter.Pool.MaxSize, "descriptor pool replaces the annotated one")

	ledger, ok := md.Component("Ledger")
	s.Require().True(ok)
	s.True(ledger.Startup)
	s.Equal(metadata.FromDescriptor, ledger.Origin)

	logger, ok := md.Class("audit.Logger")
	s.Require().True(ok)
	s.Equal("Invoke", logger.AroundInvoke)

	output := s.out.String()
	s.Contains(output, "eecore: describing [./...]")
	s.Contains(output, "Scanning:\n")
	s.Contains(output, "✓ github.com/acme/bank/v2/bank (1 components, 0 classes)")
	s.Contains(output, "Descriptor:\n")
	s.Contains(output, "[bank/bank]")
	s.Contains(output, "- singleton: [Ledger]")
	s.Contains(output, "- stateless: [Counter]")
	s.Contains(output, "   components: 2\n")
	s.Contains(output, "   descriptor: ee.yaml\n")
}

func (s *DescriberTestSuite) TestAnnotationsOnly() {
	bankModule(s.T(), nil)

	desc, err := s.describer.Run(Config{
		Directories: []string{"./bank", "./audit"},
		Application: "retail",
	})
	s.Require().NoError(err)

	s.Empty(desc.Descriptor)
	s.Equal("retail", desc.Metadata.Application)
	s.Equal("bank", desc.Metadata.Module)
	s.Len(desc.Metadata.Components, 1)
	s.NotContains(s.out.String(), "Descriptor:")
}

func (s *DescriberTestSuite) TestDescriptorNamesTheModule() {
	bankModule(s.T(), map[string]string{
		"deploy/prod.yaml": "application: shop\nmodule: core\n",
	})

	desc, err := s.describer.Run(Config{
		Directories: []string{"./..."},
		Descriptor:  "deploy/prod.yaml",
		Module:      "payments",
	})
	s.Require().NoError(err)
	s.Equal("shop", desc.Metadata.Application)
	s.Equal("payments", desc.Metadata.Module, "flags win over the descriptor")
}

func (s *DescriberTestSuite) TestMoreThanOneDescriptor() {
	bankModule(s.T(), map[string]string{
		"ee.yaml":      bankDescriptor,
		"bank/ee.yaml": "module: core\n",
	})

	_, err := s.describer.Run(Config{Directories: []string{"./..."}})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ConfigurationErrorCode))
	s.Contains(err.Error(), "found 2 deployment descriptors")
}

func (s *DescriberTestSuite) TestMissingDescriptor() {
	bankModule(s.T(), nil)

	_, err := s.describer.Run(Config{Directories: []string{"./..."}, Descriptor: "missing.yaml"})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.FileSystemErrorCode))
}

func (s *DescriberTestSuite) TestKindConflict() {
	bankModule(s.T(), map[string]string{
		"ee.yaml": "components:\n  - name: Counter\n    kind: singleton\n",
	})

	_, err := s.describer.Run(Config{Directories: []string{"./..."}})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ValidationErrorCode))
	s.Contains(err.Error(), "descriptor declares Counter as singleton but it is annotated stateless")
}

func (s *DescriberTestSuite) TestCollectsErrorsFromEveryPackage() {
	bankModule(s.T(), map[string]string{
		"cart/cart.go": "package cart\n\n//ee::stateless\ntype Cart struct{}\n\n//ee::afterbegin\nfunc (c *Cart) Begin() {}\n",
		"shop/shop.go": "package shop\n\n//ee::postconstruct\ntype Shop struct{}\n",
	})

	_, err := s.describer.Run(Config{Directories: []string{"./..."}})
	s.Require().Error(err)

	problems := Flatten(err)
	s.Len(problems, 2)
	s.True(errors.HasCode(err, errors.ValidationErrorCode))
	s.True(errors.HasCode(err, errors.SchemaErrorCode))
}

func (s *DescriberTestSuite) TestNoPackages() {
	root := s.T().TempDir()
	writeTree(s.T(), root, map[string]string{"go.mod": "module example\n"})
	s.T().Chdir(root)

	_, err := s.describer.Run(Config{Directories: []string{"./..."}})
	s.Require().Error(err)
	s.Contains(err.Error(), "no Go packages found")
}

func TestDescriberTestSuite(t *testing.T) {
	suite.Run(t, new(DescriberTestSuite))
}

func TestRenderYAML(t *testing.T) {
	md := &metadata.ModuleMetadata{
		Application: "bank",
		Module:      "core",
		Components: []*metadata.ComponentMetadata{
			metadata.NewComponentBuilder(metadata.KindStateless, "Counter", "bank.CounterBean").
				WithPool(metadata.PoolTrait{MaxSize: 4, Timeout: "250ms"}).
				Build(),
		},
	}

	out, err := RenderYAML(md)
	require.NoError(t, err)

	yaml := string(out)
	assert.Contains(t, yaml, "application: bank\n")
	assert.Contains(t, yaml, "module: core\n")
	assert.Contains(t, yaml, "- class: bank.CounterBean\n")
	assert.Contains(t, yaml, "max-size: 4\n")
	assert.Contains(t, yaml, "timeout: 250ms\n")
}
