// Package sql embeds the migrations and hand-written queries used by the
// store and catalog import packages.
package sql

import (
	"embed"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/register_version.sql
var RegisterVersion string

//go:embed queries/lookup_version.sql
var LookupVersion string

//go:embed queries/update_version_status.sql
var UpdateVersionStatus string

//go:embed queries/promote_entries.sql
var PromoteEntries string

//go:embed queries/delete_staging_batch.sql
var DeleteStagingBatch string

//go:embed queries/deactivate_older_versions.sql
var DeactivateOlderVersions string

//go:embed queries/activate_version.sql
var ActivateVersion string

//go:embed queries/load_active_catalog.sql
var LoadActiveCatalog string

//go:embed queries/get_patient.sql
var GetPatient string

//go:embed queries/upsert_patient.sql
var UpsertPatient string

//go:embed queries/insert_claim.sql
var InsertClaim string

//go:embed queries/insert_claim_item.sql
var InsertClaimItem string

//go:embed queries/update_claim_status.sql
var UpdateClaimStatus string

//go:embed queries/patient_history.sql
var PatientHistory string

//go:embed queries/list_claims.sql
var ListClaims string

//go:embed queries/list_patients.sql
var ListPatients string

//go:embed queries/prune_patients.sql
var PrunePatients string
