// Package projecttest builds small Unreal-style project trees for tests,
// either in memory or on disk.
package projecttest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

// Tree maps slash-separated relative paths to file contents
type Tree map[string]string

// MapFS converts the tree to an in-memory file system
func (tr Tree) MapFS() fstest.MapFS {
	m := make(fstest.MapFS, len(tr))
	for p, content := range tr {
		m[p] = &fstest.MapFile{Data: []byte(content), Mode: 0644}
	}
	return m
}

// Write materializes the tree under dir
func (tr Tree) Write(t testing.TB, dir string) {
	t.Helper()
	for p, content := range tr {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", full, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}
}

// Snapshot reads every file and directory under dir into a comparable map.
// Directories are recorded with a trailing slash and empty content.
func Snapshot(t testing.TB, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." {
				out[rel+"/"] = ""
			}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot %s: %v", dir, err)
	}
	return out
}

// Minimal is the smallest tree the rename scenario needs
func Minimal(name string) Tree {
	return Tree{
		name + ".uproject": `{
	"FileVersion": 3,
	"EngineAssociation": "5.3",
	"Category": "",
	"Description": ""
}
`,
		"Config/DefaultEngine.ini": "[URL]\r\nGameName=" + name + "\r\n",
		"Source/" + name + ".Target.cs": `using UnrealBuildTool;

public class ` + name + `Target : TargetRules
{
	public ` + name + `Target(TargetInfo Target) : base(Target)
	{
		Type = TargetType.Game;
	}
}
`,
	}
}

// Full is a project with editor target, a primary game module, an unrelated
// module, a plugin and the usual config keys
func Full(name string) Tree {
	upper := strings.ToUpper(name)
	return Tree{
		name + ".uproject": `{
	"FileVersion": 3,
	"EngineAssociation": "5.3",
	"Modules": [
		{
			"Name": "` + name + `",
			"Type": "Runtime",
			"LoadingPhase": "Default"
		},
		{
			"Name": "SharedTools",
			"Type": "Editor",
			"LoadingPhase": "Default"
		}
	],
	"Plugins": [
		{
			"Name": "Inventory",
			"Enabled": true
		}
	]
}
`,
		"Config/DefaultEngine.ini": "[URL]\nGameName=" + name + "\n\n" +
			"[/Script/EngineSettings.GameMapsSettings]\nGlobalDefaultGameMode=/Script/" + name + "." + name + "GameModeBase\n\n" +
			"[/Script/Engine.Engine]\nGameName=" + name + "Unrelated\n",
		"Config/DefaultGame.ini": "[/Script/EngineSettings.GeneralProjectSettings]\nProjectID=ABC\nProjectName=" + name + "\n",
		"Source/" + name + ".Target.cs": `using UnrealBuildTool;
using System.Collections.Generic;

public class ` + name + `Target : TargetRules
{
	public ` + name + `Target(TargetInfo Target) : base(Target)
	{
		Type = TargetType.Game;
		DefaultBuildSettings = BuildSettingsVersion.V4;
		ExtraModuleNames.AddRange( new string[] { "` + name + `" } );
	}
}
`,
		"Source/" + name + "Editor.Target.cs": `using UnrealBuildTool;
using System.Collections.Generic;

public class ` + name + `EditorTarget : TargetRules
{
	public ` + name + `EditorTarget(TargetInfo Target) : base(Target)
	{
		Type = TargetType.Editor;
		ExtraModuleNames.AddRange( new string[] { "` + name + `", "SharedTools" } );
	}
}
`,
		"Source/" + name + "/" + name + ".Build.cs": `using UnrealBuildTool;

public class ` + name + ` : ModuleRules
{
	public ` + name + `(ReadOnlyTargetRules Target) : base(Target)
	{
		PCHUsage = PCHUsageMode.UseExplicitOrSharedPCHs;
		PublicDependencyModuleNames.AddRange(new string[] { "Core", "CoreUObject", "Engine", "InputCore" });
	}
}
`,
		"Source/" + name + "/" + name + ".h": `#pragma once

#include "CoreMinimal.h"
`,
		"Source/" + name + "/" + name + ".cpp": `#include "` + name + `.h"
#include "Modules/ModuleManager.h"

IMPLEMENT_PRIMARY_GAME_MODULE( FDefaultGameModuleImpl, ` + name + `, "` + name + `" );
`,
		"Source/" + name + "/" + name + "GameModeBase.h": `#pragma once

#include "CoreMinimal.h"
#include "GameFramework/GameModeBase.h"
#include "` + name + `GameModeBase.generated.h"

UCLASS()
class ` + upper + `_API A` + name + `GameModeBase : public AGameModeBase
{
	GENERATED_BODY()
};
`,
		"Source/SharedTools/SharedTools.Build.cs": `using UnrealBuildTool;

public class SharedTools : ModuleRules
{
	public SharedTools(ReadOnlyTargetRules Target) : base(Target)
	{
		PrivateDependencyModuleNames.AddRange(new string[] { "Core", "` + name + `" });
	}
}
`,
		"Plugins/Inventory/Inventory.uplugin": `{
	"FileVersion": 3,
	"FriendlyName": "Inventory",
	"Modules": [
		{
			"Name": "InventoryRuntime",
			"Type": "Runtime"
		}
	]
}
`,
		"Plugins/Inventory/Source/InventoryRuntime/InventoryRuntime.Build.cs": `using UnrealBuildTool;

public class InventoryRuntime : ModuleRules
{
	public InventoryRuntime(ReadOnlyTargetRules Target) : base(Target)
	{
		PublicDependencyModuleNames.AddRange(new string[] { "Core" });
	}
}
`,
		"Content/Maps/Main.umap": "binary " + name,
		"Saved/Logs/" + name + ".log": name + " log",
	}
}
