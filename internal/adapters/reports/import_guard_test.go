package reports_test

import (
	"testing"

	"routingcore/testutil"
)

func TestExporterUsesBlobFacade(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(
		testutil.PrefixImport("routingcore/internal/infra"),
		testutil.PrefixImport("routingcore/internal/blob/core"),
	), "report exports go through the blob package")
}
