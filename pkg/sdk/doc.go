// Package dicomgw embeds the gateway core in a Go program: archive queries,
// series metadata and cached object access without the HTTP layer.
//
// The client talks to the archive through the DCMTK command-line tools and
// keeps retrieved series in a local cache tree, exactly like the server.
//
//	client, _ := dicomgw.New(ctx,
//	    dicomgw.WithMemory(),
//	    dicomgw.WithArchive("ORTHANC", "pacs.local", 4242),
//	    dicomgw.WithCache("/var/cache/dicomgw", 60),
//	)
//	defer client.Close()
//
//	studies, _ := client.SearchStudies(ctx, dicomgw.Query{
//	    Match: map[string]string{"PatientName": "DOE"},
//	})
//	meta, _ := client.SeriesMetadata(ctx, studyUID, seriesUID)
//	frame, _ := client.Frame(ctx, dicomgw.ObjectRef{StudyUID: s, SeriesUID: se, InstanceUID: i})
package dicomgw
